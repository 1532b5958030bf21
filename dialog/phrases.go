package dialog

// User-visible phrasing, grouped in one place. The dialog engine renders
// plain text only; any richer presentation belongs to the caller.

const (
	phraseExitAck        = "Peki, bıraktım. Başka bir şey istersen buradayım."
	phraseDenyAck        = "Tamam, iptal ettim."
	phraseGenericFailure = "Üzgünüm, bu işlem sırasında bir sorun oluştu. Daha sonra tekrar deneyebilirsin."
	phraseStepBudget     = "Bu isteği çözemedim, tekrar dener misin?"
	phraseNotAllowed     = "Bu işlemi yapmaya yetkim yok."
	phraseStrictConfirm  = "Lütfen 1 (evet) ya da 0 (hayır) ile yanıtla."
	phraseGenericClarify = "Tam anlayamadım, ne yapmak istediğini kısaca söyler misin?"
	phraseNoEvents       = "Bu aralıkta kayıtlı bir etkinlik görünmüyor."
	phraseNoDayWindow    = "Hangi günü kastettiğini çözemedim. Bugün mü, yarın mı?"
	phrasePlanEmptyEdit  = "Neyi değiştirmek istediğini yazar mısın?"
	phrasePlanDiscarded  = "Taslağı sildim."
)

// slotQuestions are the single-slot prompts of the intent builder.
var slotQuestions = map[Slot]string{
	SlotDay:      "Hangi gün için? (bugün / yarın)",
	SlotStart:    "Saat kaçta olsun?",
	SlotDuration: "Ne kadar sürsün? (örneğin 30 dakika)",
	SlotTitle:    "Ne için? Kısa bir başlık söyler misin?",
	SlotEventRef: "Hangi etkinlik? Numarasını söyleyebilirsin.",
}

// slotRepromptPrefix softens a repeated slot question.
const slotRepromptPrefix = "Üzgünüm, onu anlayamadım. "
