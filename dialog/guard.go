package dialog

// The hard-lock guard guarantees topic continuity: an in-progress calendar
// transaction cannot be silently abandoned by ambiguous follow-up text. While
// a write intent, a calendar pending action, or a calendar-scoped menu is
// open, every utterance is forced onto a calendar route, except for explicit
// exit phrases and the count-based soft exit.

// explicitExitPhrases release the lock immediately.
var explicitExitPhrases = []string{
	"vazgec", "vazgectim", "bosver", "bos ver", "birak", "kapat",
	"istemiyorum", "gerek yok", "kalsin", "iptal et",
}

// softExitStrikes is the number of consecutive off-topic utterances that
// release the lock without an explicit exit phrase.
const softExitStrikes = 2

// hardLockMenus are the menus that keep the calendar topic locked.
var hardLockMenus = map[MenuID]bool{
	MenuEventPick:    true,
	MenuFreeSlots:    true,
	MenuCalendarNext: true,
}

// isExitPhrase reports whether the normalized utterance is an explicit exit.
func isExitPhrase(norm string) bool {
	return containsAny(norm, explicitExitPhrases...)
}

// calendarLocked reports whether the session holds calendar-scoped state
// that must gate routing.
func calendarLocked(sess *Session) bool {
	if sess == nil {
		return false
	}
	if sess.PendingIntent != nil || sess.PendingPlan != nil {
		return true
	}
	if sess.PendingAction != nil && isCalendarTool(sess.PendingAction.Action.Name) {
		return true
	}
	if sess.PendingChoice != nil && hardLockMenus[sess.PendingChoice.ID] {
		return true
	}
	return false
}

// lockedRoute derives the forced calendar route from the open state.
func lockedRoute(sess *Session) Route {
	if sess.PendingIntent != nil {
		switch sess.PendingIntent.Type {
		case IntentCreateEvent:
			return RouteCalendarCreate
		case IntentCancelEvent:
			return RouteCalendarCancel
		case IntentMoveEvent:
			return RouteCalendarModify
		case IntentListEvents:
			return RouteCalendarQuery
		}
	}
	if sess.LastRoute.IsCalendar() {
		return sess.LastRoute
	}
	return RouteCalendarQuery
}

// applyGuard overrides the routed result while the session is calendar
// locked. It returns the effective route and whether the lock was released
// by an explicit exit phrase (in which case the caller answers with a
// neutral acknowledgement; calendar-scoped state is already cleared). The
// count-based soft exit lives in the slot filler, which knows whether an
// utterance contributed anything to the open intent.
func applyGuard(route Route, norm string, sess *Session) (Route, bool) {
	if !calendarLocked(sess) {
		return route, false
	}
	if isExitPhrase(norm) {
		sess.ClearCalendar()
		return route, true
	}
	if route.IsCalendar() {
		return route, false
	}
	return lockedRoute(sess), false
}
