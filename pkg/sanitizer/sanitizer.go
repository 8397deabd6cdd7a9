package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reStationID     = regexp.MustCompile(`[^0-9a-z_\-]+`)
	reTrimSeparator = regexp.MustCompile(`[-_]{2,}`)
)

func trimAndLower(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

func collapseSeparators(s string) string {
	s = reTrimSeparator.ReplaceAllStringFunc(s, func(m string) string { return m[:1] })
	return strings.Trim(s, "-_")
}

// SanitizeEmail lower-cases and trims an address so lookups are
// case-insensitive. It does not validate the address.
func SanitizeEmail(input string) string {
	return Pipeline{trimAndLower}.Apply(input)
}

func SanitizeStationName(input string) string {
	return Pipeline{TrimAndNormalize}.Apply(input)
}

// SanitizeStationID keeps ids URL-safe: lowercase letters, digits, '-' and '_'.
func SanitizeStationID(input string) string {
	p := Pipeline{
		trimAndLower,
		func(s string) string { return reStationID.ReplaceAllString(s, "-") },
		collapseSeparators,
	}
	return p.Apply(input)
}
