package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/ajanda/store"
)

type sqliteScheduleStore struct {
	db *sql.DB
}

func (s *sqliteScheduleStore) CreateEvent(ctx context.Context, event *store.Event) (*store.Event, error) {
	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO event (title, note, start_ts, end_ts, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		event.Title, event.Note, event.Start.Unix(), event.End.Unix(), now, now,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert event")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get inserted event id")
	}
	return s.GetEvent(ctx, id)
}

func (s *sqliteScheduleStore) GetEvent(ctx context.Context, id int64) (*store.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, note, start_ts, end_ts, created_ts, updated_ts
		FROM event WHERE id = ?`, id)
	return scanEvent(row)
}

func (s *sqliteScheduleStore) ListEvents(ctx context.Context, find store.FindEvents) ([]*store.Event, error) {
	where, args := []string{"1 = 1"}, []any{}
	// Overlap semantics: the event intersects the requested window.
	if find.Start != nil {
		where = append(where, "end_ts > ?")
		args = append(args, find.Start.Unix())
	}
	if find.End != nil {
		where = append(where, "start_ts < ?")
		args = append(args, find.End.Unix())
	}
	query := `
		SELECT id, title, note, start_ts, end_ts, created_ts, updated_ts
		FROM event WHERE ` + strings.Join(where, " AND ") + ` ORDER BY start_ts ASC`
	if find.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, find.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}
	defer rows.Close()

	var events []*store.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate events")
	}
	return events, nil
}

func (s *sqliteScheduleStore) UpdateEventTime(ctx context.Context, id int64, start, end time.Time) (*store.Event, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE event SET start_ts = ?, end_ts = ?, updated_ts = ? WHERE id = ?`,
		start.Unix(), end.Unix(), time.Now().Unix(), id,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update event")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to check update result")
	}
	if affected == 0 {
		return nil, errors.Wrapf(store.ErrEventNotFound, "id %d", id)
	}
	return s.GetEvent(ctx, id)
}

func (s *sqliteScheduleStore) DeleteEvent(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM event WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete event")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check delete result")
	}
	if affected == 0 {
		return errors.Wrapf(store.ErrEventNotFound, "id %d", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*store.Event, error) {
	var ev store.Event
	var startTS, endTS, createdTS, updatedTS int64
	if err := row.Scan(&ev.ID, &ev.Title, &ev.Note, &startTS, &endTS, &createdTS, &updatedTS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrEventNotFound
		}
		return nil, errors.Wrap(err, "failed to scan event")
	}
	ev.Start = time.Unix(startTS, 0)
	ev.End = time.Unix(endTS, 0)
	ev.CreatedAt = time.Unix(createdTS, 0)
	ev.UpdatedAt = time.Unix(updatedTS, 0)
	return &ev, nil
}
