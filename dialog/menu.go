package dialog

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// menuRule maps free-text keywords to a choice ID. Rules are evaluated in
// order; the first match wins. Keeping the matching as a small rule table
// per menu keeps it testable and extensible.
type menuRule struct {
	keywords []string
	choice   string
}

// cancelWords map to the "0" choice on every menu.
var cancelWords = []string{
	"iptal", "vazgec", "hayir", "hicbiri", "gerek yok", "yok",
	"birak", "istemiyorum", "bu kadar", "yeter",
}

var menuRules = map[MenuID][]menuRule{
	MenuUnknown: {
		{keywords: cancelWords, choice: "0"},
		{keywords: []string{"takvim", "bak", "goster", "listele", "neler var"}, choice: "1"},
		{keywords: []string{"ekle", "olustur", "etkinlik", "toplanti", "randevu"}, choice: "2"},
	},
	MenuSmalltalkStage1: {
		{keywords: cancelWords, choice: "0"},
		{keywords: []string{"takvim", "bak", "goster"}, choice: "1"},
		{keywords: []string{"plan", "planla", "ekle", "olustur"}, choice: "2"},
	},
	MenuSmalltalkStage2: {
		{keywords: cancelWords, choice: "0"},
		{keywords: []string{"bugun"}, choice: "1"},
		{keywords: []string{"yarin"}, choice: "2"},
	},
	MenuCalendarNext: {
		{keywords: cancelWords, choice: "0"},
		{keywords: []string{"ekle", "yeni", "olustur"}, choice: "1"},
		{keywords: []string{"bos", "bosluk", "musait", "uygun"}, choice: "2"},
	},
	MenuEventPick: {
		{keywords: cancelWords, choice: "0"},
	},
	MenuFreeSlots: {
		{keywords: cancelWords, choice: "0"},
	},
}

// indexMenus resolve ordinal words ("ikinci") to numbered choices.
var indexMenus = map[MenuID]bool{
	MenuEventPick: true,
	MenuFreeSlots: true,
}

var menuQuestions = map[MenuID]string{
	MenuUnknown:         "Tam anlayamadım. Ne yapmak istersin?",
	MenuSmalltalkStage1: "Buradayım. Ne yapalım?",
	MenuSmalltalkStage2: "Hangi güne bakayım?",
	MenuCalendarNext:    "Başka bir şey ister misin?",
	MenuEventPick:       "Hangi etkinliği kastettin?",
	MenuFreeSlots:       "Hangi aralık uygun?",
}

// menuReprompts are the gentler restatements used after the first ambiguous
// reply.
var menuReprompts = map[MenuID]string{
	MenuUnknown:         "Şöyle sorayım: aşağıdakilerden hangisi?",
	MenuSmalltalkStage1: "Kısaca bir numara söylemen yeterli.",
	MenuSmalltalkStage2: "Bugün mü, yarın mı? Numarayla da seçebilirsin.",
	MenuCalendarNext:    "Numarayla seçebilirsin; istemezsen 0 de.",
	MenuEventPick:       "Listedeki numaralardan birini söyler misin?",
	MenuFreeSlots:       "Listedeki numaralardan birini söyler misin?",
}

func unknownMenu() *Menu {
	return &Menu{
		ID:      MenuUnknown,
		Default: "0",
		Choices: []Choice{
			{ID: "1", Label: "Takvimine bakayım"},
			{ID: "2", Label: "Yeni etkinlik ekleyelim"},
			{ID: "0", Label: "Hiçbiri"},
		},
	}
}

func smalltalkStage1Menu() *Menu {
	return &Menu{
		ID:      MenuSmalltalkStage1,
		Default: "0",
		Choices: []Choice{
			{ID: "1", Label: "Takvimine bakayım"},
			{ID: "2", Label: "Yeni bir şey planlayalım"},
			{ID: "0", Label: "Böyle iyi"},
		},
	}
}

func smalltalkStage2Menu() *Menu {
	return &Menu{
		ID:      MenuSmalltalkStage2,
		Default: "1",
		Choices: []Choice{
			{ID: "1", Label: "Bugün"},
			{ID: "2", Label: "Yarın"},
			{ID: "0", Label: "Vazgeç"},
		},
	}
}

func calendarNextMenu(window *TimeWindow) *Menu {
	return &Menu{
		ID:      MenuCalendarNext,
		Default: "0",
		Window:  window,
		Choices: []Choice{
			{ID: "1", Label: "Yeni etkinlik ekle"},
			{ID: "2", Label: "Boş saatleri göster"},
			{ID: "0", Label: "Tamam, bu kadar"},
		},
	}
}

func eventPickMenu(events []Event) *Menu {
	m := &Menu{ID: MenuEventPick, Default: "0", Events: events}
	for i, ev := range events {
		m.Choices = append(m.Choices, Choice{
			ID:    strconv.Itoa(i + 1),
			Label: fmt.Sprintf("%s (%s)", ev.Title, ev.Start.Format("15:04")),
		})
	}
	m.Choices = append(m.Choices, Choice{ID: "0", Label: "Vazgeç"})
	return m
}

func freeSlotsMenu(slots []TimeWindow) *Menu {
	m := &Menu{ID: MenuFreeSlots, Default: "0", Slots: slots}
	for i, s := range slots {
		m.Choices = append(m.Choices, Choice{
			ID:    strconv.Itoa(i + 1),
			Label: fmt.Sprintf("%s–%s", s.Start.Format("15:04"), s.End.Format("15:04")),
		})
	}
	m.Choices = append(m.Choices, Choice{ID: "0", Label: "Vazgeç"})
	return m
}

// renderMenu renders the question plus the numbered choices.
func renderMenu(question string, m *Menu) string {
	var b strings.Builder
	b.WriteString(question)
	for _, c := range m.Choices {
		fmt.Fprintf(&b, "\n%s) %s", c.ID, c.Label)
	}
	return b.String()
}

var bareNumberPattern = regexp.MustCompile(`\b(\d{1,2})\b`)

// resolveChoice maps a normalized reply to a choice ID. Resolution order:
// exact numeric match against the allowed set, then the menu's keyword
// rules, then ordinal words for index menus. Anything else is ambiguous.
func resolveChoice(m *Menu, norm string, nlu CalendarNLU) (string, bool) {
	if num := bareNumberPattern.FindString(norm); num != "" && m.HasChoice(num) {
		return num, true
	}
	for _, rule := range menuRules[m.ID] {
		if containsAny(norm, rule.keywords...) {
			return rule.choice, true
		}
	}
	if indexMenus[m.ID] {
		if idx, ok := nlu.OrdinalIndex(norm); ok {
			if idx == -1 {
				idx = len(m.Choices) - 1 // last listed entry before "0"
			}
			id := strconv.Itoa(idx)
			if m.HasChoice(id) {
				return id, true
			}
		}
	}
	return "", false
}

// openMenu installs the menu as the pending choice and renders it.
func (o *Orchestrator) openMenu(m *Menu, sess *Session) *Result {
	sess.PendingChoice = m
	sess.State = StatePendingChoice
	sess.Trace.NextAction = "menu:" + string(m.ID)
	return askUser(renderMenu(menuQuestions[m.ID], m)).
		WithMeta("menu_id", string(m.ID)).
		WithMeta("options", m.Options())
}

// handleMenu resolves one reply against the open menu, applying the
// two-attempt reprompt-then-default policy.
func (o *Orchestrator) handleMenu(ctx context.Context, norm, raw string, tc TurnContext, sess *Session) *Result {
	menu := sess.PendingChoice

	// Open-ended menus allow escape back into routing: a reply that carries
	// a calendar signal is re-evaluated as a calendar turn instead of being
	// consumed as a (failed) numeric choice.
	if !hardLockMenus[menu.ID] && hasCalendarSignal(norm) {
		sess.PendingChoice = nil
		sess.RepromptCount = 0
		sess.State = StateIdle
		return o.handleRouting(ctx, norm, raw, tc, sess)
	}

	if isExitPhrase(norm) {
		sess.ClearCalendar()
		return say(phraseExitAck)
	}

	choice, ok := resolveChoice(menu, norm, o.nlu)
	if !ok {
		if sess.RepromptCount == 0 {
			// First ambiguous reply: re-ask with a gentler restatement.
			sess.RepromptCount = 1
			return askUser(renderMenu(menuReprompts[menu.ID], menu)).
				WithMeta("menu_id", string(menu.ID)).
				WithMeta("options", menu.Options()).
				WithMeta("reprompt_for", string(menu.ID))
		}
		// Second consecutive ambiguous reply: apply the default.
		choice = menu.Default
		sess.Trace.flag("menu_default_applied")
		menuDefaultsApplied.Inc()
	}

	sess.PendingChoice = nil
	sess.RepromptCount = 0
	sess.State = StateIdle
	return o.applyMenuChoice(ctx, menu, choice, raw, tc, sess)
}

// applyMenuChoice executes the semantics of a resolved menu choice.
func (o *Orchestrator) applyMenuChoice(ctx context.Context, menu *Menu, choice string, raw string, tc TurnContext, sess *Session) *Result {
	if choice == "0" {
		sess.PendingIntent = nil
		return say(phraseDenyAck)
	}

	switch menu.ID {
	case MenuUnknown, MenuSmalltalkStage1:
		if choice == "1" {
			if menu.ID == MenuSmalltalkStage1 {
				return o.openMenu(smalltalkStage2Menu(), sess)
			}
			return o.handleQuery(ctx, &Intent{Type: IntentListEvents, Slots: map[Slot]string{SlotDay: "today"}}, tc, sess)
		}
		// choice "2": start a fresh create intent.
		return o.handleCalendarIntent(ctx, RouteCalendarCreate, "", "", tc, sess)

	case MenuSmalltalkStage2:
		day := "today"
		if choice == "2" {
			day = "tomorrow"
		}
		return o.handleQuery(ctx, &Intent{Type: IntentListEvents, Slots: map[Slot]string{SlotDay: day}}, tc, sess)

	case MenuCalendarNext:
		if choice == "1" {
			return o.handleCalendarIntent(ctx, RouteCalendarCreate, "", "", tc, sess)
		}
		return o.offerFreeSlots(ctx, menu.Window, tc, sess)

	case MenuEventPick:
		idx, err := strconv.Atoi(choice)
		if err != nil || idx < 1 || idx > len(menu.Events) {
			return say(phraseDenyAck)
		}
		in := sess.PendingIntent
		if in == nil {
			in = &Intent{Type: IntentCancelEvent, Slots: map[Slot]string{}}
		}
		in.Slots[SlotEventRef] = choice
		sess.LastEvents = menu.Events
		computeMissing(in)
		if len(in.Missing) > 0 {
			sess.PendingIntent = in
			slot := in.Missing[0]
			return askUser(slotQuestions[slot]).WithMeta("reprompt_for", string(slot))
		}
		return o.resolveEventAction(ctx, in, tc, raw, sess)

	case MenuFreeSlots:
		idx, err := strconv.Atoi(choice)
		if err != nil || idx < 1 || idx > len(menu.Slots) {
			return say(phraseDenyAck)
		}
		return o.takeFreeSlot(ctx, menu.Slots[idx-1], raw, tc, sess)
	}
	return say(phraseDenyAck)
}

// takeFreeSlot continues a create intent with the chosen free slot.
func (o *Orchestrator) takeFreeSlot(ctx context.Context, slot TimeWindow, raw string, tc TurnContext, sess *Session) *Result {
	in := sess.PendingIntent
	if in == nil || in.Type != IntentCreateEvent {
		in = &Intent{Type: IntentCreateEvent, Slots: map[Slot]string{}}
	}
	in.Slots[SlotDay] = dayKeyFor(tc, slot.Start)
	in.Slots[SlotStart] = slot.Start.Format("15:04")
	if !in.Filled(SlotDuration) {
		in.Slots[SlotDuration] = strconv.Itoa(int(slot.End.Sub(slot.Start) / time.Minute))
	}
	computeMissing(in)
	if len(in.Missing) > 0 {
		sess.PendingIntent = in
		s := in.Missing[0]
		return askUser(slotQuestions[s]).WithMeta("reprompt_for", string(s))
	}
	return o.queueCreate(ctx, in, tc, raw, sess)
}

// dayKeyFor matches a timestamp back to the caller-supplied window keys.
// Day-level keys are preferred over part-of-day keys sharing the same date.
func dayKeyFor(tc TurnContext, t time.Time) string {
	y, m, d := t.Date()
	sameDay := func(w TimeWindow) bool {
		wy, wm, wd := w.Start.Date()
		return y == wy && m == wm && d == wd
	}
	for _, key := range []string{"today", "tomorrow"} {
		if w, ok := tc.Windows[key]; ok && sameDay(w) {
			return key
		}
	}
	for key, w := range tc.Windows {
		if sameDay(w) {
			return key
		}
	}
	return "today"
}
