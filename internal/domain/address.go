package domain

import (
	"regexp"
	"strings"
)

// AddressSuffix is the transport's addressing domain for individual chats.
const AddressSuffix = "@c.us"

// minAddressDigits is the sanity floor below which a normalized address is
// flagged as suspicious. Short addresses are still produced; the strict
// send-time check is what actually blocks a send.
const minAddressDigits = 10

var sendableAddressRx = regexp.MustCompile(`^[0-9]{10,15}@c\.us$`)

// NormalizeAddress derives the canonical transport address from a raw phone
// number. Normalization is a pure function of the input: everything but
// digits is stripped (including a leading +) and the addressing suffix is
// appended. The second result reports whether the address failed the
// minimum-length sanity check.
func NormalizeAddress(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	return digits + AddressSuffix, len(digits) < minAddressDigits
}

// SendableAddress is the strict format check applied at send time. Addresses
// failing it cause the individual send to be skipped.
func SendableAddress(addr string) bool {
	return sendableAddressRx.MatchString(addr)
}

var plausibleNumberRx = regexp.MustCompile(`^\+?[0-9]{10,}$`)

// PlausibleNumber is the permissive ingestion-time check: an optional leading
// plus followed by at least ten digits, with separators stripped first.
func PlausibleNumber(raw string) bool {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '+':
			return r
		}
		return -1
	}, raw)
	return plausibleNumberRx.MatchString(cleaned)
}
