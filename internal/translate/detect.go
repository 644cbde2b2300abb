package translate

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const DefaultLanguage = "en"

// Supported lists the languages complaints may arrive in.
var Supported = []string{"en", "hi", "bn", "te", "mr", "ta", "ur", "gu", "kn", "ml", "or", "pa"}

// indic is the set served by the Bhashini language pack.
var indic = map[string]bool{
	"hi": true, "bn": true, "te": true, "mr": true, "ta": true, "ur": true,
	"gu": true, "kn": true, "ml": true, "or": true, "pa": true, "as": true,
}

type scriptLang struct {
	table *unicode.RangeTable
	lang  string
}

// Order matters only for Devanagari, which is resolved to hi or mr after
// counting.
var scripts = []scriptLang{
	{unicode.Devanagari, "hi"},
	{unicode.Bengali, "bn"},
	{unicode.Telugu, "te"},
	{unicode.Tamil, "ta"},
	{unicode.Arabic, "ur"},
	{unicode.Gujarati, "gu"},
	{unicode.Kannada, "kn"},
	{unicode.Malayalam, "ml"},
	{unicode.Oriya, "or"},
	{unicode.Gurmukhi, "pa"},
	{unicode.Latin, "en"},
}

var marathiMarkers = []string{"आहे", "नाही", "आणि", "आम्ही", "तुम्ही", "झाले", "करावी"}

// DetectLanguage picks the language of the dominant script in text.
// It returns false only when text is empty or whitespace; text with no
// letters at all is reported as the default language.
func DetectLanguage(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	counts := make([]int, len(scripts))
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.Is(unicode.Mn, r) && !unicode.Is(unicode.Mc, r) {
			continue
		}
		for i, s := range scripts {
			if unicode.Is(s.table, r) {
				counts[i]++
				break
			}
		}
	}

	best, bestCount := -1, 0
	for i, n := range counts {
		if n > bestCount {
			best, bestCount = i, n
		}
	}
	if best < 0 {
		return DefaultLanguage, true
	}

	lang := scripts[best].lang
	if lang == "hi" {
		for _, marker := range marathiMarkers {
			if strings.Contains(text, marker) {
				return "mr", true
			}
		}
	}
	return lang, true
}

// Canonical reduces a BCP 47 tag to its base language ("hi-IN" -> "hi").
// Empty input stays empty.
func Canonical(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", err
	}
	base, _ := tag.Base()
	return base.String(), nil
}

func IsIndic(code string) bool {
	return indic[code]
}

func IsSupported(code string) bool {
	for _, s := range Supported {
		if s == code {
			return true
		}
	}
	return false
}

// DisplayName returns the English name of a language code.
func DisplayName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return display.English.Languages().Name(tag)
}
