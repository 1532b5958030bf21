package dialog

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// slotOrder is the fixed order missing slots are asked in. The event
// reference always comes last.
var slotOrder = []Slot{SlotDay, SlotStart, SlotDuration, SlotTitle, SlotEventRef}

// requiredSlots lists what each intent type needs before an action can be
// queued. list_events has no hard requirement: the day hint defaults to
// today when a window for it exists.
var requiredSlots = map[IntentType][]Slot{
	IntentCreateEvent: {SlotDay, SlotStart, SlotDuration, SlotTitle},
	IntentMoveEvent:   {SlotDay, SlotStart, SlotEventRef},
	IntentCancelEvent: {SlotEventRef},
	IntentListEvents:  {},
}

func intentTypeForRoute(route Route) IntentType {
	switch route {
	case RouteCalendarCreate:
		return IntentCreateEvent
	case RouteCalendarCancel:
		return IntentCancelEvent
	case RouteCalendarModify:
		return IntentMoveEvent
	case RouteCalendarQuery:
		return IntentListEvents
	}
	return IntentNone
}

var standaloneIndexPattern = regexp.MustCompile(`^#?(\d{1,2})$`)

// extractIntent builds a fresh intent from the current utterance only.
func (o *Orchestrator) extractIntent(typ IntentType, norm, raw string) *Intent {
	in := &Intent{Type: typ, Slots: map[Slot]string{}}

	if day, ok := o.nlu.DayHint(norm); ok {
		in.Slots[SlotDay] = day
	}
	if h, m, ok := o.nlu.ClockTime(norm); ok {
		in.Slots[SlotStart] = fmt.Sprintf("%02d:%02d", h, m)
	}
	if minutes, ok := o.nlu.DurationMinutes(norm); ok {
		in.Slots[SlotDuration] = strconv.Itoa(minutes)
	}
	if title := o.nlu.Title(raw); title != "" {
		in.Slots[SlotTitle] = title
	}
	if ref, ok := o.extractEventRef(norm); ok {
		in.Slots[SlotEventRef] = ref
	}
	return in
}

// extractEventRef finds an explicit index ("#2", "no 2", a bare number) or
// an ordinal word.
func (o *Orchestrator) extractEventRef(norm string) (string, bool) {
	if m := indexRefPattern.FindStringSubmatch(norm); m != nil {
		return m[1], true
	}
	if m := standaloneIndexPattern.FindStringSubmatch(strings.TrimSpace(norm)); m != nil {
		return m[1], true
	}
	if idx, ok := o.nlu.OrdinalIndex(norm); ok {
		return strconv.Itoa(idx), true
	}
	return "", false
}

// mergeIntent merges a fresh intent into the frozen one from prior turns.
// Fresh values win, with one exception: a frozen title is never overwritten,
// so a duration-only follow-up like "30 dk" cannot corrupt the subject.
func mergeIntent(frozen, fresh *Intent) *Intent {
	if frozen == nil {
		return fresh
	}
	merged := &Intent{Type: frozen.Type, Slots: map[Slot]string{}}
	for k, v := range frozen.Slots {
		merged.Slots[k] = v
	}
	for k, v := range fresh.Slots {
		if k == SlotTitle && merged.Slots[SlotTitle] != "" {
			continue
		}
		merged.Slots[k] = v
	}
	return merged
}

// computeMissing fills in the ordered missing-slot list.
func computeMissing(in *Intent) {
	required := requiredSlots[in.Type]
	in.Missing = in.Missing[:0]
	for _, s := range slotOrder {
		for _, r := range required {
			if s == r && !in.Filled(s) {
				in.Missing = append(in.Missing, s)
			}
		}
	}
}

// handleCalendarIntent runs one slot-filling step: merge the utterance into
// the frozen intent, ask for exactly one missing slot, or queue the
// resolved action through the confirmation gate.
func (o *Orchestrator) handleCalendarIntent(ctx context.Context, route Route, norm, raw string, tc TurnContext, sess *Session) *Result {
	typ := intentTypeForRoute(route)
	if sess.PendingIntent != nil {
		typ = sess.PendingIntent.Type
	}

	fresh := o.extractIntent(typ, norm, raw)
	contributed := len(fresh.Slots) > 0 || hasCalendarSignal(norm)

	// Count-based soft exit: two consecutive turns contributing nothing to
	// an open intent release the hard lock.
	if sess.PendingIntent != nil && !contributed {
		sess.LockStrikes++
		if sess.LockStrikes >= softExitStrikes {
			sess.ClearCalendar()
			return say(phraseExitAck)
		}
		in := sess.PendingIntent
		computeMissing(in)
		sess.Trace.setIntent(in)
		if len(in.Missing) > 0 {
			slot := in.Missing[0]
			return askUser(slotRepromptPrefix + slotQuestions[slot]).
				WithMeta("reprompt_for", string(slot))
		}
	}
	if contributed {
		sess.LockStrikes = 0
	}

	in := mergeIntent(sess.PendingIntent, fresh)
	computeMissing(in)
	sess.Trace.setIntent(in)

	if len(in.Missing) > 0 {
		slot := in.Missing[0]
		sess.PendingIntent = in
		return askUser(slotQuestions[slot]).WithMeta("reprompt_for", string(slot))
	}

	// All required slots are present: resolve and queue, never execute here.
	switch in.Type {
	case IntentCreateEvent:
		return o.queueCreate(ctx, in, tc, raw, sess)
	case IntentCancelEvent, IntentMoveEvent:
		return o.resolveEventAction(ctx, in, tc, raw, sess)
	case IntentListEvents:
		return o.handleQuery(ctx, in, tc, sess)
	}
	sess.PendingIntent = nil
	return say(phraseGenericClarify)
}

// resolveEventWindow turns day-hint + HH:MM + duration into absolute bounds
// using the caller-supplied windows.
func resolveEventWindow(tc TurnContext, in *Intent) (start, end time.Time, ok bool) {
	window, found := tc.Windows[in.Slots[SlotDay]]
	if !found {
		return time.Time{}, time.Time{}, false
	}
	var hour, minute int
	if _, err := fmt.Sscanf(in.Slots[SlotStart], "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, time.Time{}, false
	}
	day := window.Start
	start = time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())

	minutes, _ := strconv.Atoi(in.Slots[SlotDuration])
	if minutes <= 0 {
		minutes = 60
	}
	end = start.Add(time.Duration(minutes) * time.Minute)
	return start, end, true
}

// queueCreate resolves the absolute event window and hands a
// calendar.create_event action to the confirmation gate.
func (o *Orchestrator) queueCreate(ctx context.Context, in *Intent, tc TurnContext, raw string, sess *Session) *Result {
	start, end, ok := resolveEventWindow(tc, in)
	if !ok {
		// Day hint did not resolve to a caller window: ask for it again.
		in.Slots[SlotDay] = ""
		computeMissing(in)
		sess.PendingIntent = in
		return askUser(phraseNoDayWindow).WithMeta("reprompt_for", string(SlotDay))
	}

	title := in.Slots[SlotTitle]
	call := ToolCall{
		Name: "calendar.create_event",
		Params: map[string]any{
			"title": title,
			"start": start.Format(time.RFC3339),
			"end":   end.Format(time.RFC3339),
		},
	}
	prompt := fmt.Sprintf("%s %s–%s \"%s\" ekleyeyim mi? (1: evet / 0: hayır)",
		dayLabel(in.Slots[SlotDay]), start.Format("15:04"), end.Format("15:04"), title)
	sess.PendingIntent = nil
	return o.queueAction(ctx, call, prompt, raw, sess)
}

// resolveEventAction resolves the event reference for cancel/move intents,
// listing recent events first when the cache is cold, and queues the write.
func (o *Orchestrator) resolveEventAction(ctx context.Context, in *Intent, tc TurnContext, raw string, sess *Session) *Result {
	if len(sess.LastEvents) == 0 {
		day := in.Slots[SlotDay]
		if day == "" {
			day = "today"
		}
		window, ok := tc.Windows[day]
		if !ok {
			in.Slots[SlotDay] = ""
			computeMissing(in)
			sess.PendingIntent = in
			return askUser(phraseNoDayWindow).WithMeta("reprompt_for", string(SlotDay))
		}
		events, err := o.listEvents(ctx, window)
		if err != nil {
			o.logger.Warn("event listing for reference resolution failed", "error", err)
			return say(phraseGenericFailure)
		}
		sess.LastEvents = events
	}

	target, candidates := pickEvent(sess.LastEvents, in, o.nlu)
	if target == nil {
		if len(candidates) == 0 {
			sess.PendingIntent = nil
			return say(phraseNoEvents)
		}
		// Ambiguous: fall back to a finite event menu.
		sess.PendingIntent = in
		menu := eventPickMenu(candidates)
		return o.openMenu(menu, sess)
	}

	sess.PendingIntent = nil
	switch in.Type {
	case IntentCancelEvent:
		call := ToolCall{Name: "calendar.delete_event", Params: map[string]any{"id": target.ID}}
		prompt := fmt.Sprintf("\"%s\" (%s) etkinliğini sileyim mi? (1: evet / 0: hayır)",
			target.Title, target.Start.Format("15:04"))
		return o.queueAction(ctx, call, prompt, raw, sess)
	default: // IntentMoveEvent
		start, end, ok := resolveEventWindow(tc, withDuration(in, target))
		if !ok {
			in.Slots[SlotDay] = ""
			computeMissing(in)
			sess.PendingIntent = in
			return askUser(phraseNoDayWindow).WithMeta("reprompt_for", string(SlotDay))
		}
		call := ToolCall{
			Name: "calendar.update_event",
			Params: map[string]any{
				"id":    target.ID,
				"start": start.Format(time.RFC3339),
				"end":   end.Format(time.RFC3339),
			},
		}
		prompt := fmt.Sprintf("\"%s\" etkinliğini %s %s–%s aralığına taşıyayım mı? (1: evet / 0: hayır)",
			target.Title, dayLabel(in.Slots[SlotDay]), start.Format("15:04"), end.Format("15:04"))
		return o.queueAction(ctx, call, prompt, raw, sess)
	}
}

// withDuration fills the duration slot from the target event when the user
// did not give one, so a move keeps the original length.
func withDuration(in *Intent, target *Event) *Intent {
	if in.Filled(SlotDuration) {
		return in
	}
	minutes := int(target.End.Sub(target.Start) / time.Minute)
	if minutes <= 0 {
		minutes = 60
	}
	out := &Intent{Type: in.Type, Slots: map[Slot]string{}}
	for k, v := range in.Slots {
		out.Slots[k] = v
	}
	out.Slots[SlotDuration] = strconv.Itoa(minutes)
	return out
}

// pickEvent attempts a best-effort single-candidate match from the cached
// events: explicit index, ordinal word, then time/title overlap scoring.
func pickEvent(events []Event, in *Intent, nlu CalendarNLU) (*Event, []Event) {
	if len(events) == 0 {
		return nil, nil
	}

	if ref := in.Slots[SlotEventRef]; ref != "" {
		if idx, err := strconv.Atoi(ref); err == nil {
			if idx == -1 {
				return &events[len(events)-1], events
			}
			if idx >= 1 && idx <= len(events) {
				return &events[idx-1], events
			}
		}
	}

	// Overlap scoring: start-time match and title word overlap.
	best, bestScore, ties := -1, 0, 0
	for i, ev := range events {
		score := 0
		if start := in.Slots[SlotStart]; start != "" && ev.Start.Format("15:04") == start {
			score += 2
		}
		if title := in.Slots[SlotTitle]; title != "" {
			evTitle := Normalize(ev.Title)
			for _, w := range normTokens(Normalize(title)) {
				if containsWord(evTitle, w) {
					score++
				}
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, ties = i, score, 1
		case score == bestScore && score > 0:
			ties++
		}
	}
	if best >= 0 && ties == 1 {
		return &events[best], events
	}
	return nil, events
}

// dayLabel renders a canonical window key for prompts.
func dayLabel(day string) string {
	switch day {
	case "today":
		return "Bugün"
	case "tomorrow":
		return "Yarın"
	case "morning":
		return "Sabah"
	case "evening":
		return "Akşam"
	}
	return day
}
