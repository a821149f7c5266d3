// Package safety screens chat input for crisis language and annotates dosing replies.
package safety

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/vladimiradmaev/diabetes-companion/internal/domain"
)

// crisisPatterns are lowercase and run against lowercased input. Go's (?i)
// folding does not map Turkish İ and I, so IsCrisis lowercases both ways.
var crisisPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bsuicid`),
	regexp.MustCompile(`\bkill\s+myself\b`),
	regexp.MustCompile(`\bend\s+my\s+life\b`),
	regexp.MustCompile(`\bwant\s+to\s+die\b`),
	regexp.MustCompile(`\bover\s?dos(e|ed|es|ing)\b`),
	regexp.MustCompile(`intihar`),
	regexp.MustCompile(`kendimi\s+öldür`),
	regexp.MustCompile(`ölmek\s+istiyorum`),
	regexp.MustCompile(`aşırı\s+doz`),
}

// dosePattern matches a number followed by an insulin unit word.
var dosePattern = regexp.MustCompile(`(?i)\d+([.,]\d+)?\s*(units?|ünite|iu|u)\b`)

const (
	crisisEN = "It sounds like you are going through something very hard. You are not alone. " +
		"If you are in immediate danger, call your local emergency number (112 in Türkiye and the EU, 911 in the US) now. " +
		"You can also reach a crisis line such as 988 (US) or talk to someone you trust. " +
		"I cannot help with this here, but people are ready to listen."
	crisisTR = "Çok zor bir şey yaşıyor gibisiniz. Yalnız değilsiniz. " +
		"Acil bir tehlike varsa hemen 112'yi arayın. " +
		"Güvendiğiniz biriyle konuşmanız ya da bir sağlık profesyoneline ulaşmanız da çok önemli. " +
		"Bu konuda burada yardımcı olamam ama sizi dinlemeye hazır insanlar var."

	disclaimerEN = "\n\n⚠️ This is general information, not medical advice. Confirm any insulin dose with your doctor or diabetes care team."
	disclaimerTR = "\n\n⚠️ Bu genel bir bilgidir, tıbbi tavsiye değildir. İnsülin dozlarını mutlaka doktorunuz veya diyabet ekibinizle doğrulayın."
)

// IsCrisis reports whether text matches any crisis pattern, under either
// the default or the Turkish lowercase mapping.
func IsCrisis(text string) bool {
	for _, lowered := range []string{
		strings.ToLower(text),
		strings.ToLowerSpecial(unicode.TurkishCase, text),
	} {
		for _, p := range crisisPatterns {
			if p.MatchString(lowered) {
				return true
			}
		}
	}
	return false
}

// CrisisMessage returns the static crisis resource text.
func CrisisMessage(lang domain.Lang) string {
	if lang == domain.LangEN {
		return crisisEN
	}
	return crisisTR
}

// MentionsDose reports whether text contains a number followed by a unit word.
func MentionsDose(text string) bool {
	return dosePattern.MatchString(text)
}

// WithDisclaimer appends the medical disclaimer when reply mentions a dose.
// Replies that already end with the disclaimer are returned unchanged.
func WithDisclaimer(reply string, lang domain.Lang) string {
	if !MentionsDose(reply) {
		return reply
	}
	d := disclaimerTR
	if lang == domain.LangEN {
		d = disclaimerEN
	}
	if strings.HasSuffix(reply, d) {
		return reply
	}
	return reply + d
}
