package tools

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/ajanda/store"
)

// memStore is an in-memory ScheduleStore for tool tests.
type memStore struct {
	nextID int64
	events map[int64]*store.Event
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, events: map[int64]*store.Event{}}
}

func (m *memStore) CreateEvent(_ context.Context, event *store.Event) (*store.Event, error) {
	ev := *event
	ev.ID = m.nextID
	m.nextID++
	ev.CreatedAt = time.Now()
	ev.UpdatedAt = ev.CreatedAt
	m.events[ev.ID] = &ev
	return &ev, nil
}

func (m *memStore) GetEvent(_ context.Context, id int64) (*store.Event, error) {
	ev, ok := m.events[id]
	if !ok {
		return nil, store.ErrEventNotFound
	}
	return ev, nil
}

func (m *memStore) ListEvents(_ context.Context, find store.FindEvents) ([]*store.Event, error) {
	var out []*store.Event
	for _, ev := range m.events {
		if find.Start != nil && !ev.End.After(*find.Start) {
			continue
		}
		if find.End != nil && !ev.Start.Before(*find.End) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	if find.Limit > 0 && len(out) > find.Limit {
		out = out[:find.Limit]
	}
	return out, nil
}

func (m *memStore) UpdateEventTime(_ context.Context, id int64, start, end time.Time) (*store.Event, error) {
	ev, ok := m.events[id]
	if !ok {
		return nil, store.ErrEventNotFound
	}
	ev.Start = start
	ev.End = end
	ev.UpdatedAt = time.Now()
	return ev, nil
}

func (m *memStore) DeleteEvent(_ context.Context, id int64) error {
	if _, ok := m.events[id]; !ok {
		return store.ErrEventNotFound
	}
	delete(m.events, id)
	return nil
}

var day = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

func clock(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func seedEvent(t *testing.T, st *memStore, title string, start, end time.Time) *store.Event {
	t.Helper()
	ev, err := st.CreateEvent(context.Background(), &store.Event{Title: title, Start: start, End: end})
	require.NoError(t, err)
	return ev
}

func TestRegistryRegisterAndGet(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry(NewCalendarTools(st)...)

	tool, ok := reg.Get("calendar.list_events")
	require.True(t, ok)
	assert.Equal(t, "calendar.list_events", tool.Name())

	_, ok = reg.Get("calendar.nope")
	assert.False(t, ok)

	catalog := reg.AsLLMCatalog()
	require.Len(t, catalog, 6)
	// Catalog preserves registration order.
	assert.Equal(t, "calendar.list_events", catalog[0].Name)
	assert.Equal(t, "calendar.plan_apply", catalog[5].Name)
}

func TestRegistryValidateCall(t *testing.T) {
	reg := NewRegistry(NewCalendarTools(newMemStore())...)

	ok, _ := reg.ValidateCall("calendar.create_event", map[string]any{
		"title": "spor", "start": "x", "end": "y",
	})
	assert.True(t, ok)

	ok, reason := reg.ValidateCall("calendar.create_event", map[string]any{"title": "spor"})
	assert.False(t, ok)
	assert.Contains(t, reason, "start")

	ok, reason = reg.ValidateCall("calendar.nope", nil)
	assert.False(t, ok)
	assert.Contains(t, reason, "unknown tool")
}

func TestCreateThenListEvents(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry(NewCalendarTools(st)...)
	ctx := context.Background()

	createTool, _ := reg.Get("calendar.create_event")
	out, err := createTool.Run(ctx, `{"title":"toplantı","start":"2026-03-09T14:00:00Z","end":"2026-03-09T15:00:00Z"}`)
	require.NoError(t, err)

	var created struct {
		OK    bool `json:"ok"`
		Event struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		} `json:"event"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.True(t, created.OK)
	assert.Equal(t, int64(1), created.Event.ID)
	assert.Equal(t, "toplantı", created.Event.Title)

	listTool, _ := reg.Get("calendar.list_events")
	out, err = listTool.Run(ctx, `{"start":"2026-03-09T00:00:00Z","end":"2026-03-10T00:00:00Z"}`)
	require.NoError(t, err)

	var listed struct {
		Events []struct {
			Title string `json:"title"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed.Events, 1)
	assert.Equal(t, "toplantı", listed.Events[0].Title)
}

func TestCreateEventValidation(t *testing.T) {
	createTool, _ := NewRegistry(NewCalendarTools(newMemStore())...).Get("calendar.create_event")
	ctx := context.Background()

	_, err := createTool.Run(ctx, `{"title":"","start":"2026-03-09T14:00:00Z","end":"2026-03-09T15:00:00Z"}`)
	assert.ErrorContains(t, err, "title is required")

	_, err = createTool.Run(ctx, `{"title":"x","start":"bozuk","end":"2026-03-09T15:00:00Z"}`)
	assert.ErrorContains(t, err, "invalid start")

	// Inverted window.
	_, err = createTool.Run(ctx, `{"title":"x","start":"2026-03-09T15:00:00Z","end":"2026-03-09T14:00:00Z"}`)
	assert.ErrorContains(t, err, "end must be after start")
}

func TestUpdateAndDeleteEvent(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry(NewCalendarTools(st)...)
	ctx := context.Background()
	ev := seedEvent(t, st, "spor", clock(9, 0), clock(10, 0))

	updateTool, _ := reg.Get("calendar.update_event")
	out, err := updateTool.Run(ctx, `{"id":1,"start":"2026-03-10T11:00:00Z","end":"2026-03-10T12:00:00Z"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"ok":true`)
	assert.Equal(t, time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC), st.events[ev.ID].Start)

	deleteTool, _ := reg.Get("calendar.delete_event")
	out, err = deleteTool.Run(ctx, `{"id":1}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"ok":true`)
	assert.Empty(t, st.events)

	// A second delete of the same ID fails.
	_, err = deleteTool.Run(ctx, `{"id":1}`)
	assert.Error(t, err)
}

func TestFreeSlots(t *testing.T) {
	events := []*store.Event{
		{Start: clock(9, 0), End: clock(10, 0)},
		{Start: clock(13, 0), End: clock(14, 30)},
	}

	slots := freeSlots(clock(8, 0), clock(18, 0), time.Hour, events)
	require.Len(t, slots, 3)
	assert.Equal(t, clock(8, 0), slots[0].Start)
	assert.Equal(t, clock(9, 0), slots[0].End)
	assert.Equal(t, clock(10, 0), slots[1].Start)
	assert.Equal(t, clock(13, 0), slots[1].End)
	assert.Equal(t, clock(14, 30), slots[2].Start)
	assert.Equal(t, clock(18, 0), slots[2].End)

	// A tighter minimum drops the leading one-hour gap.
	slots = freeSlots(clock(8, 0), clock(18, 0), 2*time.Hour, events)
	require.Len(t, slots, 2)
	assert.Equal(t, clock(10, 0), slots[0].Start)

	// Overlapping busy intervals are walked with a single cursor.
	overlapping := []*store.Event{
		{Start: clock(9, 0), End: clock(12, 0)},
		{Start: clock(10, 0), End: clock(11, 0)},
	}
	slots = freeSlots(clock(9, 0), clock(13, 0), time.Hour, overlapping)
	require.Len(t, slots, 1)
	assert.Equal(t, clock(12, 0), slots[0].Start)

	// An empty calendar yields the whole window.
	slots = freeSlots(clock(9, 0), clock(13, 0), time.Hour, nil)
	require.Len(t, slots, 1)
	assert.Equal(t, clock(9, 0), slots[0].Start)
	assert.Equal(t, clock(13, 0), slots[0].End)
}

func TestFreeSlotsToolCapsOutput(t *testing.T) {
	st := newMemStore()
	// Many short busy blocks produce more gaps than the cap.
	for i := 0; i < 8; i++ {
		seedEvent(t, st, "blok", clock(8+2*i, 0), clock(8+2*i, 30))
	}
	freeTool, _ := NewRegistry(NewCalendarTools(st)...).Get("calendar.free_slots")

	out, err := freeTool.Run(context.Background(),
		`{"start":"2026-03-09T08:00:00Z","end":"2026-03-10T00:00:00Z","duration_minutes":30}`)
	require.NoError(t, err)

	var payload struct {
		Slots []struct {
			Start time.Time `json:"start"`
		} `json:"slots"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Len(t, payload.Slots, maxReportedSlots)
}

func TestPlanApplyDryRunWritesNothing(t *testing.T) {
	st := newMemStore()
	applyTool, _ := NewRegistry(NewCalendarTools(st)...).Get("calendar.plan_apply")
	ctx := context.Background()

	input := `{"dry_run":true,"events":[
		{"title":"spor","start":"2026-03-10T09:00:00Z","end":"2026-03-10T10:00:00Z"},
		{"title":"kitap","start":"2026-03-10T20:00:00Z","end":"2026-03-10T21:00:00Z"}]}`

	out, err := applyTool.Run(ctx, input)
	require.NoError(t, err)

	var payload struct {
		OK      bool `json:"ok"`
		Created int  `json:"created"`
		Events  []struct {
			Title string `json:"title"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.True(t, payload.OK)
	assert.Zero(t, payload.Created)
	assert.Len(t, payload.Events, 2)
	assert.Empty(t, st.events)
}

func TestPlanApplyCommits(t *testing.T) {
	st := newMemStore()
	applyTool, _ := NewRegistry(NewCalendarTools(st)...).Get("calendar.plan_apply")

	input := `{"events":[
		{"title":"spor","start":"2026-03-10T09:00:00Z","end":"2026-03-10T10:00:00Z"},
		{"title":"kitap","start":"2026-03-10T20:00:00Z","end":"2026-03-10T21:00:00Z"}]}`

	out, err := applyTool.Run(context.Background(), input)
	require.NoError(t, err)

	var payload struct {
		Created int `json:"created"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, 2, payload.Created)
	assert.Len(t, st.events, 2)
}

func TestPlanApplyValidatesEveryEvent(t *testing.T) {
	st := newMemStore()
	applyTool, _ := NewRegistry(NewCalendarTools(st)...).Get("calendar.plan_apply")

	_, err := applyTool.Run(context.Background(), `{"events":[]}`)
	assert.ErrorContains(t, err, "events is required")

	_, err = applyTool.Run(context.Background(),
		`{"events":[{"title":"","start":"2026-03-10T09:00:00Z","end":"2026-03-10T10:00:00Z"}]}`)
	assert.ErrorContains(t, err, "title is required")
	assert.Empty(t, st.events)
}
