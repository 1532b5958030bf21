package ai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/ajanda/dialog"
)

// scriptedClient returns canned payloads in order.
type scriptedClient struct {
	responses []string
	err       error
	calls     int
}

func (c *scriptedClient) CompleteJSON(_ context.Context, _ []dialog.Message, _ string) (json.RawMessage, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	i := c.calls - 1
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return json.RawMessage(c.responses[i]), nil
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	t.Run("valid route", func(t *testing.T) {
		cl := NewClassifier(&scriptedClient{responses: []string{`{"route":"calendar_query","confidence":0.9}`}})
		route, conf, err := cl.Classify(ctx, "programımda neler var")
		require.NoError(t, err)
		assert.Equal(t, dialog.RouteCalendarQuery, route)
		assert.Equal(t, 0.9, conf)
	})

	t.Run("out-of-set route maps to unknown", func(t *testing.T) {
		cl := NewClassifier(&scriptedClient{responses: []string{`{"route":"weather","confidence":0.9}`}})
		route, conf, err := cl.Classify(ctx, "hava nasıl")
		require.NoError(t, err)
		assert.Equal(t, dialog.RouteUnknown, route)
		assert.Zero(t, conf)
	})

	t.Run("confidence outside range is zeroed", func(t *testing.T) {
		cl := NewClassifier(&scriptedClient{responses: []string{`{"route":"smalltalk","confidence":3.5}`}})
		route, conf, err := cl.Classify(ctx, "selam")
		require.NoError(t, err)
		assert.Equal(t, dialog.RouteSmalltalk, route)
		assert.Zero(t, conf)
	})

	t.Run("client error propagates", func(t *testing.T) {
		cl := NewClassifier(&scriptedClient{err: errors.New("timeout")})
		_, _, err := cl.Classify(ctx, "selam")
		assert.Error(t, err)
	})

	t.Run("malformed response errors", func(t *testing.T) {
		cl := NewClassifier(&scriptedClient{responses: []string{`[1,2,3]`}})
		_, _, err := cl.Classify(ctx, "selam")
		assert.Error(t, err)
	})
}

func TestPlannerBuild(t *testing.T) {
	ctx := context.Background()
	windows := map[string]dialog.TimeWindow{
		"tomorrow": {
			Start: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		},
	}

	t.Run("valid plan sorted by start", func(t *testing.T) {
		p := NewPlanner(&scriptedClient{responses: []string{`{"events":[
			{"title":"kitap","start":"2026-03-10T20:00:00Z","end":"2026-03-10T21:00:00Z"},
			{"title":"spor","start":"2026-03-10T09:00:00Z","end":"2026-03-10T10:00:00Z"}]}`}})
		draft, err := p.Build(ctx, "yarınımı planla", windows)
		require.NoError(t, err)
		require.Len(t, draft.Events, 2)
		assert.Equal(t, "spor", draft.Events[0].Title)
		assert.Equal(t, "kitap", draft.Events[1].Title)
		assert.Contains(t, draft.Preview, "Plan taslağı:")
		assert.Contains(t, draft.Preview, "1) 10.03")
	})

	t.Run("empty plan errors", func(t *testing.T) {
		p := NewPlanner(&scriptedClient{responses: []string{`{"events":[]}`}})
		_, err := p.Build(ctx, "yarınımı planla", windows)
		assert.Error(t, err)
	})

	t.Run("untitled event errors", func(t *testing.T) {
		p := NewPlanner(&scriptedClient{responses: []string{`{"events":[
			{"title":"  ","start":"2026-03-10T09:00:00Z","end":"2026-03-10T10:00:00Z"}]}`}})
		_, err := p.Build(ctx, "yarınımı planla", windows)
		assert.Error(t, err)
	})

	t.Run("inverted window errors", func(t *testing.T) {
		p := NewPlanner(&scriptedClient{responses: []string{`{"events":[
			{"title":"spor","start":"2026-03-10T10:00:00Z","end":"2026-03-10T09:00:00Z"}]}`}})
		_, err := p.Build(ctx, "yarınımı planla", windows)
		assert.Error(t, err)
	})
}

func TestPlannerRenderIncludesNote(t *testing.T) {
	p := NewPlanner(&scriptedClient{})
	draft := &dialog.PlanDraft{
		Events: []dialog.DraftEvent{{
			Title: "spor",
			Start: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		}},
		Note: "hafif bir gün",
	}
	out := p.Render(draft)
	assert.Contains(t, out, "spor")
	assert.Contains(t, out, "09:00–10:00")
	assert.Contains(t, out, "hafif bir gün")
}
