// Package text prepares user text for a remote speech synthesizer.
package text

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MaxNumberForWords is the largest integer spelled out in English.
	MaxNumberForWords = 999999

	english = "en"
	// Placeholders are single private-use runes so no later rule can match them.
	placeholderBase = 0xE000
)

var sentenceEnds = []rune{'.', '!', '?', '…', '。', '！', '？'}

// Normalizer cleans text before synthesis. It is safe for concurrent use.
type Normalizer struct {
	urls          *regexp.Regexp
	emails        *regexp.Regexp
	numbers       *regexp.Regexp
	references    *regexp.Regexp
	repeatedPunct *regexp.Regexp
	spaces        *regexp.Regexp
	abbreviations *strings.Replacer
	typography    *strings.Replacer
}

// NewNormalizer compiles the patterns once.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		urls:          regexp.MustCompile(`https?://\S+`),
		emails:        regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		numbers:       regexp.MustCompile(`\d+`),
		references:    regexp.MustCompile(`\[\d+\]`),
		repeatedPunct: regexp.MustCompile(`([!?,;:])[!?,;:]+`),
		spaces:        regexp.MustCompile(`\s+`),
		abbreviations: strings.NewReplacer(
			"Mr.", "Mister",
			"Mrs.", "Misses",
			"Ms.", "Miss",
			"Dr.", "Doctor",
			"St.", "Saint",
			"Ltd.", "Limited",
			"Inc.", "Incorporated",
		),
		typography: strings.NewReplacer(
			"—", " - ",
			"–", "-",
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Normalize returns text ready for a synthesizer speaking lang. English text
// also gets abbreviations expanded and integers spelled out; other languages
// keep their digits for the remote engine to read. URLs and e-mail addresses
// pass through untouched.
func (n *Normalizer) Normalize(text, lang string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var kept []string

	protect := func(match string) string {
		kept = append(kept, match)

		return string(rune(placeholderBase + len(kept) - 1))
	}

	text = n.urls.ReplaceAllStringFunc(text, protect)
	text = n.emails.ReplaceAllStringFunc(text, protect)

	if isEnglish(lang) {
		text = n.abbreviations.Replace(text)
		text = n.numbers.ReplaceAllStringFunc(text, spellNumber)
	}

	text = n.references.ReplaceAllString(text, "")
	text = n.typography.Replace(text)
	text = n.repeatedPunct.ReplaceAllString(text, "$1")
	text = strings.TrimSpace(n.spaces.ReplaceAllString(text, " "))

	for i, original := range kept {
		text = strings.ReplaceAll(text, string(rune(placeholderBase+i)), original)
	}

	return endSentence(text)
}

func isEnglish(lang string) bool {
	lang = strings.ToLower(lang)

	return lang == english || strings.HasPrefix(lang, english+"-")
}

func endSentence(text string) string {
	if text == "" {
		return ""
	}

	last, _ := utf8.DecodeLastRuneInString(text)
	for _, r := range sentenceEnds {
		if last == r {
			return text
		}
	}

	return text + "."
}

func spellNumber(digits string) string {
	n, err := strconv.Atoi(digits)
	if err != nil || n > MaxNumberForWords {
		return digits
	}

	return IntegerToWords(n)
}

var (
	ones = []string{
		"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
		"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
		"seventeen", "eighteen", "nineteen",
	}
	tens = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}
)

// IntegerToWords spells n in English. Values outside [0, MaxNumberForWords]
// are returned as digits.
func IntegerToWords(n int) string {
	if n < 0 || n > MaxNumberForWords {
		return strconv.Itoa(n)
	}

	if n < 1000 {
		return underThousand(n)
	}

	words := underThousand(n/1000) + " thousand"
	if rest := n % 1000; rest > 0 {
		words += " " + underThousand(rest)
	}

	return words
}

func underThousand(n int) string {
	switch {
	case n < 20:
		return ones[n]
	case n < 100:
		if n%10 == 0 {
			return tens[n/10]
		}

		return tens[n/10] + " " + ones[n%10]
	case n%100 == 0:
		return ones[n/100] + " hundred"
	default:
		return ones[n/100] + " hundred " + underThousand(n%100)
	}
}
