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
	rePlateSeparators = regexp.MustCompile(`[\s\-_.]+`)
	rePlateAllowed    = regexp.MustCompile(`[^0-9\p{Lu}\-]+`)
)

func trimAndLower(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

func SanitizeName(input string) string {
	return TrimAndNormalize(input)
}

func SanitizeEmail(input string) string {
	return trimAndLower(input)
}

func SanitizeUserID(input string) string {
	return strings.TrimSpace(input)
}

// SanitizePlate uppercases a plate and collapses any run of spaces, dots,
// dashes or underscores into one dash: " ka 01-ab 1234 " -> "KA-01-AB-1234".
func SanitizePlate(input string) string {
	p := Pipeline{
		strings.TrimSpace,
		strings.ToUpper,
		func(s string) string { return rePlateSeparators.ReplaceAllString(s, "-") },
		func(s string) string { return rePlateAllowed.ReplaceAllString(s, "") },
		func(s string) string { return strings.Trim(s, "-") },
	}
	return p.Apply(input)
}

func SanitizeVehicleType(input string) string {
	return trimAndLower(input)
}

func SanitizeRole(input string) string {
	return trimAndLower(input)
}
