package provider

import (
	"regexp"
	"strings"
)

var (
	digitsOnly   = regexp.MustCompile(`^\d{10}$`)
	nonNameChars = regexp.MustCompile(`[^A-Za-zÇĞİÖŞÜçğıöşü\s]`)
	multiSpace   = regexp.MustCompile(`\s+`)
)

// NormalizePhone canonicalizes Turkish phone numbers to E.164 (+90...).
// Accepted shapes: already international (+90...), country-code prefixed
// (90...), local with leading zero (0...), and bare national ten digits.
// Anything else passes through unchanged; normalization is best-effort and
// never validates.
func NormalizePhone(raw string) string {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if s == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(s, "+90"):
		return s
	case strings.HasPrefix(s, "90"):
		return "+" + s
	case strings.HasPrefix(s, "0"):
		return "+90" + s[1:]
	case digitsOnly.MatchString(s):
		return "+90" + s
	}
	return s
}

// SanitizeFullName joins name and surname and strips everything the
// provider rejects in name fields: digits and symbols go, letters
// (including Turkish accented letters) and single spaces stay.
func SanitizeFullName(name, surname string) string {
	full := strings.TrimSpace(name + " " + surname)
	full = nonNameChars.ReplaceAllString(full, "")
	full = multiSpace.ReplaceAllString(full, " ")
	return strings.TrimSpace(full)
}
