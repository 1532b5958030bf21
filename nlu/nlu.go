// Package nlu implements the Turkish calendar-language helpers: day hints,
// clock times, durations, ordinals and event titles, all as deterministic
// pattern matching over normalized text.
package nlu

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hrygo/ajanda/dialog"
)

// Parser implements dialog.CalendarNLU over normalized Turkish text.
type Parser struct{}

// New creates a Parser. It is stateless and safe for concurrent use.
func New() *Parser { return &Parser{} }

var dayWords = []struct {
	words []string
	key   string
}{
	{[]string{"yarin"}, "tomorrow"},
	{[]string{"bugun"}, "today"},
	{[]string{"sabah", "sabahleyin"}, "morning"},
	{[]string{"aksam", "aksamustu", "aksama"}, "evening"},
}

// DayHint maps day words to their canonical window key. "yarın sabah" picks
// tomorrow: the day word outranks the part-of-day word.
func (p *Parser) DayHint(norm string) (string, bool) {
	for _, d := range dayWords {
		for _, w := range d.words {
			if containsWord(norm, w) {
				return d.key, true
			}
		}
	}
	return "", false
}

var (
	clockPattern     = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	bareHourPattern  = regexp.MustCompile(`\bsaat (\d{1,2})\b`)
	minutesPattern   = regexp.MustCompile(`\b(\d{1,3}) ?(?:dakika|dakikalik|dk)\b`)
	hoursPattern     = regexp.MustCompile(`\b(\d{1,2}) ?(?:saat|saatlik)\b`)
	halfHoursPattern = regexp.MustCompile(`\b(\d{1,2}) bucuk saat\b`)
)

var wordHours = map[string]int{
	"bir": 1, "iki": 2, "uc": 3, "dort": 4, "bes": 5,
}

// ClockTime extracts an HH:MM time of day. "saat 15" counts as 15:00.
func (p *Parser) ClockTime(norm string) (int, int, bool) {
	if m := clockPattern.FindStringSubmatch(norm); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		if h <= 23 && min <= 59 {
			return h, min, true
		}
	}
	if m := bareHourPattern.FindStringSubmatch(norm); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h <= 23 {
			return h, 0, true
		}
	}
	return 0, 0, false
}

// DurationMinutes extracts a duration expression in minutes.
func (p *Parser) DurationMinutes(norm string) (int, bool) {
	if m := halfHoursPattern.FindStringSubmatch(norm); m != nil {
		h, _ := strconv.Atoi(m[1])
		return h*60 + 30, true
	}
	if m := minutesPattern.FindStringSubmatch(norm); m != nil {
		min, _ := strconv.Atoi(m[1])
		if min > 0 {
			return min, true
		}
	}
	if m := hoursPattern.FindStringSubmatch(norm); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h > 0 {
			return h * 60, true
		}
	}
	if containsWord(norm, "yarim saat") {
		return 30, true
	}
	for word, h := range wordHours {
		if containsWord(norm, word+" saat") || containsWord(norm, word+" saatlik") {
			return h * 60, true
		}
	}
	return 0, false
}

var ordinals = map[string]int{
	"ilk": 1, "birinci": 1, "ikinci": 2, "ucuncu": 3,
	"dorduncu": 4, "besinci": 5, "son": -1, "sonuncu": -1,
}

// OrdinalIndex maps ordinal words to a 1-based index; -1 means the last one.
func (p *Parser) OrdinalIndex(norm string) (int, bool) {
	for word, idx := range ordinals {
		if containsWord(norm, word) {
			return idx, true
		}
	}
	return 0, false
}

// titleNoise lists the tokens that never belong in an event subject: command
// verbs, day and time words, politeness fillers and attached case particles.
var titleNoise = map[string]struct{}{
	"ekle": {}, "ekler": {}, "eklesene": {}, "olustur": {}, "ayarla": {},
	"kur": {}, "koy": {}, "yaz": {}, "kaydet": {}, "planla": {},
	"sil": {}, "iptal": {}, "et": {}, "kaldir": {}, "cikar": {},
	"kaydir": {}, "tasi": {}, "ertele": {}, "al": {}, "degistir": {},
	"bugun": {}, "yarin": {}, "sabah": {}, "sabahleyin": {}, "aksam": {},
	"aksamustu": {}, "aksama": {}, "saat": {}, "saatlik": {}, "dakika": {},
	"dakikalik": {}, "dk": {}, "bucuk": {}, "yarim": {},
	"takvim": {}, "takvime": {}, "takvimim": {}, "takvimime": {},
	"takvimde": {}, "takvimimde": {}, "randevu": {},
	"bana": {}, "bir": {}, "icin": {}, "lutfen": {}, "misin": {},
	"musun": {}, "istiyorum": {}, "isterim": {}, "rica": {}, "ve": {},
	"te": {}, "ta": {}, "de": {}, "da": {}, "den": {}, "dan": {},
	"e": {}, "a": {}, "ye": {}, "ya": {},
}

var digitsOnly = regexp.MustCompile(`^\d+$`)

// Title extracts the event subject left after removing date, time, duration
// and command tokens. It works on the raw utterance so user casing survives.
func (p *Parser) Title(raw string) string {
	var kept []string
	for _, tok := range strings.Fields(raw) {
		if isNoiseToken(tok) {
			continue
		}
		kept = append(kept, strings.Trim(tok, ".,!?;\"'"))
	}
	if len(kept) > 5 {
		kept = kept[:5]
	}
	return strings.Join(kept, " ")
}

// isNoiseToken normalizes one raw token and drops it when every resulting
// piece is noise. "15:00'te" normalizes to "15:00 te", both pieces noise.
func isNoiseToken(tok string) bool {
	norm := dialog.Normalize(tok)
	if norm == "" {
		return true
	}
	for _, piece := range strings.Fields(norm) {
		if _, stop := titleNoise[piece]; stop {
			continue
		}
		if clockPattern.MatchString(piece) || digitsOnly.MatchString(piece) {
			continue
		}
		return false
	}
	return true
}

// DefaultWindows builds the canonical day windows around the given instant.
func DefaultWindows(now time.Time, loc *time.Location) map[string]dialog.TimeWindow {
	if loc == nil {
		loc = now.Location()
	}
	now = now.In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	day := 24 * time.Hour
	return map[string]dialog.TimeWindow{
		"today":    {Start: midnight, End: midnight.Add(day)},
		"tomorrow": {Start: midnight.Add(day), End: midnight.Add(2 * day)},
		"morning":  {Start: midnight.Add(6 * time.Hour), End: midnight.Add(12 * time.Hour)},
		"evening":  {Start: midnight.Add(18 * time.Hour), End: midnight.Add(23 * time.Hour)},
	}
}

// containsWord reports whether the padded phrase occurs in the padded text,
// so matches stay on token boundaries.
func containsWord(norm, word string) bool {
	return strings.Contains(" "+norm+" ", " "+word+" ")
}
