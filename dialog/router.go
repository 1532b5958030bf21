package dialog

import (
	"context"
	"log/slog"
	"regexp"
)

// Route is the coarse-grained classification of a turn.
type Route string

const (
	RouteCalendarQuery  Route = "calendar_query"
	RouteCalendarCreate Route = "calendar_create"
	RouteCalendarModify Route = "calendar_modify"
	RouteCalendarCancel Route = "calendar_cancel"
	RouteSmalltalk      Route = "smalltalk"
	RouteUnknown        Route = "unknown"
)

// IsCalendar reports whether the route targets the calendar domain.
func (r Route) IsCalendar() bool {
	switch r {
	case RouteCalendarQuery, RouteCalendarCreate, RouteCalendarModify, RouteCalendarCancel:
		return true
	}
	return false
}

// classifierThreshold gates the LLM classifier: its route is accepted only
// at or above this confidence.
const classifierThreshold = 0.65

// Keyword tables over normalized (diacritic-folded) text.
var (
	strongNouns = []string{"takvim", "takvimim", "takvimime", "takvimimde", "toplanti", "randevu", "etkinlik", "ajanda", "ajandam"}
	softNouns   = []string{"plan", "planim", "program", "programim"}

	createVerbs = []string{"ekle", "olustur", "kur", "ayarla", "planla", "koy"}
	cancelVerbs = []string{"iptal", "sil", "kaldir"}
	modifyVerbs = []string{"tasi", "degistir", "ertele", "guncelle", "kaydir", "al"}
	queryVerbs  = []string{"bak", "goster", "listele", "soyle", "oku"}

	smalltalkWords = []string{"selam", "merhaba", "naber", "nasilsin", "gunaydin", "tesekkur", "tesekkurler", "sagol", "eyvallah", "iyi geceler", "iyi aksamlar"}

	// Time and date cues for Turkish surface forms.
	timePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}:\d{2}\b`),
		regexp.MustCompile(`\bsaat \d{1,2}\b`),
		regexp.MustCompile(`\b\d+ (dakika|dk|saat)\b`),
		regexp.MustCompile(`\b(bugun|yarin|aksam|sabah|ogle|ogleden|gece|hafta|haftaya|pazartesi|sali|carsamba|persembe|cuma|cumartesi|pazar)\b`),
	}

	indexRefPattern = regexp.MustCompile(`(?:#|\bno )(\d+)\b`)
	ordinalWords    = []string{"ilk", "birinci", "ikinci", "ucuncu", "dorduncu", "besinci", "altinci", "sonuncu"}
)

// Router is the deterministic keyword/pattern route classifier with an
// optional confidence-gated LLM classifier behind it.
type Router struct {
	classifier RouteClassifier
	logger     *slog.Logger
}

// NewRouter creates a router. classifier may be nil, in which case
// unresolved turns stay RouteUnknown.
func NewRouter(classifier RouteClassifier, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{classifier: classifier, logger: logger}
}

// Route classifies a normalized utterance. Deterministic rules fire first in
// priority order; the LLM classifier is consulted only when they yield
// RouteUnknown.
func (r *Router) Route(ctx context.Context, norm string, sess *Session) Route {
	if route := deterministicRoute(norm, sess); route != RouteUnknown {
		return route
	}
	if r.classifier == nil {
		return RouteUnknown
	}

	route, confidence, err := r.classifier.Classify(ctx, norm)
	if err != nil {
		r.logger.Warn("route classifier failed, keeping unknown", "error", err)
		return RouteUnknown
	}
	if confidence < classifierThreshold {
		r.logger.Debug("route classifier below threshold",
			"route", route, "confidence", confidence)
		return RouteUnknown
	}
	return route
}

// deterministicRoute applies the rule table. The order is significant.
func deterministicRoute(norm string, sess *Session) Route {
	hasStrong := containsAny(norm, strongNouns...)
	hasSoft := containsAny(norm, softNouns...)
	hasTime := hasTimePattern(norm)
	hasRef := hasIndexReference(norm)

	// (a) Explicit event reference combined with a cancel/move verb.
	if hasRef {
		if containsAny(norm, cancelVerbs...) {
			return RouteCalendarCancel
		}
		if containsAny(norm, modifyVerbs...) {
			return RouteCalendarModify
		}
	}

	verbRoute := RouteUnknown
	switch {
	case containsAny(norm, cancelVerbs...):
		verbRoute = RouteCalendarCancel
	case containsAny(norm, modifyVerbs...):
		verbRoute = RouteCalendarModify
	case containsAny(norm, createVerbs...):
		verbRoute = RouteCalendarCreate
	case containsAny(norm, queryVerbs...):
		verbRoute = RouteCalendarQuery
	}

	// (b) Strong calendar noun without any verb reads as a status query.
	if hasStrong && verbRoute == RouteUnknown {
		return RouteCalendarQuery
	}

	// (c) Soft noun plus a time cue reads as a query ("bu hafta planim ne").
	if hasSoft && hasTime && verbRoute == RouteUnknown {
		return RouteCalendarQuery
	}

	// (d) Verb plus calendar context yields the verb-implied route.
	if verbRoute != RouteUnknown {
		continuation := sess != nil && (sess.LastRoute.IsCalendar() || isCalendarTool(sess.LastTool))
		if hasStrong || (hasSoft && hasTime) || hasTime || continuation {
			return verbRoute
		}
	}

	if containsAny(norm, smalltalkWords...) {
		return RouteSmalltalk
	}

	// (e) Nothing matched.
	return RouteUnknown
}

// hasCalendarSignal reports whether the utterance carries any calendar cue.
// Used by the hard-lock guard and by open menus that allow re-evaluation.
func hasCalendarSignal(norm string) bool {
	if containsAny(norm, strongNouns...) {
		return true
	}
	hasVerb := containsAny(norm, createVerbs...) || containsAny(norm, cancelVerbs...) ||
		containsAny(norm, modifyVerbs...) || containsAny(norm, queryVerbs...)
	if hasVerb && (hasTimePattern(norm) || containsAny(norm, softNouns...)) {
		return true
	}
	return containsAny(norm, softNouns...) && hasTimePattern(norm)
}

func hasTimePattern(norm string) bool {
	for _, p := range timePatterns {
		if p.MatchString(norm) {
			return true
		}
	}
	return false
}

// hasIndexReference detects "#2", "no 2" and ordinal words.
func hasIndexReference(norm string) bool {
	if indexRefPattern.MatchString(norm) {
		return true
	}
	return containsAny(norm, ordinalWords...)
}

func isCalendarTool(name string) bool {
	return len(name) > 9 && name[:9] == "calendar."
}
