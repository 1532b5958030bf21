package dialog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plannerTC() TurnContext {
	tc := testTurnContext()
	tc.EnablePlanner = true
	return tc
}

func weekendDraft() *PlanDraft {
	return &PlanDraft{Events: []DraftEvent{
		{Title: "spor", Start: at(1, 9, 0), End: at(1, 10, 0)},
		{Title: "kitap", Start: at(1, 20, 0), End: at(1, 21, 0)},
	}}
}

func TestWantsPlan(t *testing.T) {
	tc := plannerTC()
	assert.True(t, wantsPlan(Normalize("yarınımı planla"), tc))
	assert.True(t, wantsPlan(Normalize("haftalık bir program yap"), tc))
	assert.False(t, wantsPlan(Normalize("yarın toplantı ekle"), tc))

	// The planner flag gates the whole workflow.
	tc.EnablePlanner = false
	assert.False(t, wantsPlan(Normalize("yarınımı planla"), tc))
}

func TestPlanDraftOpenAndCancel(t *testing.T) {
	reg := calendarRegistry(nil)
	planner := &fakePlanner{draft: weekendDraft()}
	o := newTestOrchestrator(reg, WithPlanBuilder(planner))
	tc := plannerTC()
	sess := NewSession("s1")
	ctx := context.Background()

	res := o.Turn(ctx, "yarın günümü planla", tc, sess)
	require.Equal(t, ResultAskUser, res.Kind)
	assert.Contains(t, res.Text, "Plan taslağı:")
	assert.Contains(t, res.Text, planMenuText)
	assert.Equal(t, StatePendingPlanDraft, sess.State)
	require.NotNil(t, sess.PendingPlan)

	res = o.Turn(ctx, "iptal", tc, sess)
	assert.Equal(t, phrasePlanDiscarded, res.Text)
	assert.Nil(t, sess.PendingPlan)
	assert.Equal(t, StateIdle, sess.State)
	assert.Empty(t, reg.tool("calendar.plan_apply").calls)
}

func TestPlanDraftAcceptRunsDryRunAndQueuesApply(t *testing.T) {
	reg := calendarRegistry(nil)
	planner := &fakePlanner{draft: weekendDraft()}
	o := newTestOrchestrator(reg, WithPlanBuilder(planner))
	tc := plannerTC()
	sess := NewSession("s1")
	ctx := context.Background()

	o.Turn(ctx, "yarın günümü planla", tc, sess)

	res := o.Turn(ctx, "onayla", tc, sess)
	require.Equal(t, ResultAskUser, res.Kind)
	assert.Contains(t, res.Text, "2 etkinliği gerçekten ekleyeyim mi? (1: evet / 0: hayır)")
	assert.Equal(t, StatePendingConfirmation, sess.State)

	// Exactly one call so far, and it was the dry run.
	applyCalls := reg.tool("calendar.plan_apply").calls
	require.Len(t, applyCalls, 1)
	var dry struct {
		DryRun bool `json:"dry_run"`
	}
	require.NoError(t, json.Unmarshal([]byte(applyCalls[0]), &dry))
	assert.True(t, dry.DryRun)

	// The strict token commits the real apply.
	res = o.Turn(ctx, "1", tc, sess)
	require.Equal(t, ResultSay, res.Kind)
	assert.Equal(t, "Planı uyguladım: 2 etkinlik eklendi.", res.Text)
	assert.Equal(t, StateIdle, sess.State)
	assert.Nil(t, sess.PendingPlan)

	applyCalls = reg.tool("calendar.plan_apply").calls
	require.Len(t, applyCalls, 2)
	require.NoError(t, json.Unmarshal([]byte(applyCalls[1]), &dry))
	assert.False(t, dry.DryRun)
}

func TestPlanDraftApplyRejectsLooseConfirmation(t *testing.T) {
	reg := calendarRegistry(nil)
	planner := &fakePlanner{draft: weekendDraft()}
	o := newTestOrchestrator(reg, WithPlanBuilder(planner))
	tc := plannerTC()
	sess := NewSession("s1")
	ctx := context.Background()

	o.Turn(ctx, "yarın günümü planla", tc, sess)
	o.Turn(ctx, "onayla", tc, sess)
	require.Len(t, reg.tool("calendar.plan_apply").calls, 1) // dry run only

	// plan_apply without dry_run is destructive: "tamam" is not enough.
	res := o.Turn(ctx, "tamam", tc, sess)
	require.Equal(t, ResultAskUser, res.Kind)
	assert.Equal(t, phraseStrictConfirm, res.Text)
	assert.Len(t, reg.tool("calendar.plan_apply").calls, 1)
	require.NotNil(t, sess.PendingAction)
}

func TestPlanDraftEdit(t *testing.T) {
	reg := calendarRegistry(nil)
	planner := &fakePlanner{draft: weekendDraft()}
	o := newTestOrchestrator(reg, WithPlanBuilder(planner))
	tc := plannerTC()
	sess := NewSession("s1")
	ctx := context.Background()

	o.Turn(ctx, "yarın günümü planla", tc, sess)

	res := o.Turn(ctx, "2 koşu", tc, sess)
	require.Equal(t, ResultAskUser, res.Kind)
	assert.Contains(t, res.Text, "koşu")
	assert.Contains(t, res.Text, planMenuText)
	require.NotNil(t, sess.PendingPlan)
	assert.Equal(t, "koşu", sess.PendingPlan.Events[0].Title)
	assert.Equal(t, StatePendingPlanDraft, sess.State)
}

func TestPlanDraftEditMentioningOtherNumbers(t *testing.T) {
	reg := calendarRegistry(nil)
	planner := &fakePlanner{draft: weekendDraft()}
	o := newTestOrchestrator(reg, WithPlanBuilder(planner))
	tc := plannerTC()
	sess := NewSession("s1")
	ctx := context.Background()

	o.Turn(ctx, "yarın günümü planla", tc, sess)

	// The leading "2" picks the edit branch even though the instruction
	// mentions "1" later on; nothing gets applied.
	res := o.Turn(ctx, "2 numaralı etkinliği saat 1 e al", tc, sess)
	require.Equal(t, ResultAskUser, res.Kind)
	assert.Contains(t, res.Text, planMenuText)
	assert.Empty(t, reg.tool("calendar.plan_apply").calls)
	require.NotNil(t, sess.PendingPlan)
	assert.Equal(t, "numaralı etkinliği saat 1 e al", sess.PendingPlan.Events[0].Title)
	assert.Nil(t, sess.PendingAction)
	assert.Equal(t, StatePendingPlanDraft, sess.State)
}

func TestPlanDraftEmptyEditReasks(t *testing.T) {
	reg := calendarRegistry(nil)
	planner := &fakePlanner{draft: weekendDraft()}
	o := newTestOrchestrator(reg, WithPlanBuilder(planner))
	tc := plannerTC()
	sess := NewSession("s1")
	ctx := context.Background()

	o.Turn(ctx, "yarın günümü planla", tc, sess)

	res := o.Turn(ctx, "düzenle", tc, sess)
	require.Equal(t, ResultAskUser, res.Kind)
	assert.Equal(t, phrasePlanEmptyEdit, res.Text)
	assert.NotNil(t, sess.PendingPlan)
}

func TestPlanDraftAmbiguousTwiceDiscards(t *testing.T) {
	reg := calendarRegistry(nil)
	planner := &fakePlanner{draft: weekendDraft()}
	o := newTestOrchestrator(reg, WithPlanBuilder(planner))
	tc := plannerTC()
	sess := NewSession("s1")
	ctx := context.Background()

	o.Turn(ctx, "yarın günümü planla", tc, sess)

	res := o.Turn(ctx, "şey bilemedim şimdi", tc, sess)
	require.Equal(t, ResultAskUser, res.Kind)
	assert.Contains(t, res.Text, "Taslak için ne yapayım?")
	assert.NotNil(t, sess.PendingPlan)

	res = o.Turn(ctx, "valla zor soru", tc, sess)
	require.Equal(t, ResultSay, res.Kind)
	assert.Equal(t, phrasePlanDiscarded, res.Text)
	assert.Nil(t, sess.PendingPlan)
	assert.Equal(t, StateIdle, sess.State)
	assert.Contains(t, sess.Trace.Safety, "menu_default_applied")
	assert.Empty(t, reg.tool("calendar.plan_apply").calls)
}

func TestPlanDraftBuildFailure(t *testing.T) {
	reg := calendarRegistry(nil)
	planner := &fakePlanner{buildErr: assert.AnError}
	o := newTestOrchestrator(reg, WithPlanBuilder(planner))
	sess := NewSession("s1")

	res := o.Turn(context.Background(), "yarın günümü planla", plannerTC(), sess)
	assert.Equal(t, ResultSay, res.Kind)
	assert.Equal(t, phraseGenericFailure, res.Text)
	assert.Nil(t, sess.PendingPlan)
	assert.Equal(t, StateIdle, sess.State)
}

func TestStripLeadingChoiceToken(t *testing.T) {
	assert.Equal(t, "sporu sabaha al", stripLeadingChoiceToken("2 sporu sabaha al"))
	assert.Equal(t, "sporu sabaha al", stripLeadingChoiceToken("düzenle sporu sabaha al"))
	assert.Equal(t, "sporu sabaha al", stripLeadingChoiceToken("sporu sabaha al"))
	assert.Equal(t, "", stripLeadingChoiceToken("  "))
}
