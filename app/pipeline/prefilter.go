package pipeline

import (
	"strings"
)

type Verdict string

const (
	VerdictPass   Verdict = "pass"
	VerdictReject Verdict = "reject"
)

// Keyword lists are matched against NormalizeText output, so Arabic entries
// are written in their folded spelling (bare alef, ha for ta marbuta).
var (
	// rejectKeywords mark announcements about finished or unrelated work:
	// premieres, wrapped shoots, congratulations, workshops, festivals.
	// They correlate almost perfectly with non-opportunities, so they veto
	// everything else.
	rejectKeywords = []string{
		"congratulations",
		"congrats",
		"now playing",
		"now showing",
		"in theaters",
		"in theatres",
		"in cinemas",
		"wrapped filming",
		"wrapping filming",
		"that's a wrap",
		"premiere",
		"workshop",
		"masterclass",
		"festival",
		"مبروك",
		"تهانينا",
		"يعرض الان",
		"الان في السينما",
		"في دور العرض",
		"ورشه",
		"مهرجان",
		"العرض الاول",
	}

	// strongCastingKeywords are unambiguous casting vocabulary.
	strongCastingKeywords = []string{
		"casting call",
		"casting now",
		"now casting",
		"open casting",
		"seeking actors",
		"seeking actresses",
		"audition",
		"كاستينج",
		"كاستنج",
		"تجارب اداء",
		"مطلوب ممثل",
		"مطلوب ممثله",
		"نبحث عن ممثل",
		"نبحث عن ممثله",
	}

	// requiredKeywords are generic staffing verbs: too weak alone, they
	// need an application cue to pass.
	requiredKeywords = []string{
		"required",
		"needed",
		"wanted",
		"looking for",
		"مطلوب",
		"نبحث عن",
	}

	// applicationIntentKeywords signal that the text is soliciting
	// submissions rather than announcing something.
	applicationIntentKeywords = []string{
		"submit",
		"apply",
		"application",
		"deadline",
		"contact us",
		"send your",
		"dm us",
		"تقديم",
		"للتقدم",
		"قدم الان",
		"ارسل",
		"تواصل معنا",
		"اخر موعد",
	}
)

// Classify is the cheap keyword gate that runs before any paid extraction
// call. Pure and deterministic: reject keywords veto absolutely, strong
// casting vocabulary passes, and a staffing verb passes only when paired
// with an application cue.
func Classify(text string) Verdict {
	normalized := NormalizeText(CleanText(text))

	if containsAny(normalized, rejectKeywords) {
		return VerdictReject
	}

	if containsAny(normalized, strongCastingKeywords) {
		return VerdictPass
	}

	if containsAny(normalized, requiredKeywords) && containsAny(normalized, applicationIntentKeywords) {
		return VerdictPass
	}

	return VerdictReject
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
