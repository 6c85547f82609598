// Package email normalizes and checks contact addresses on profiles.
package email

import (
	"net/mail"
	"strings"
)

// MaxLength bounds stored addresses (RFC 5321 path limit).
const MaxLength = 254

// Normalize trims whitespace and lowercases the domain part.
func Normalize(addr string) string {
	addr = strings.TrimSpace(addr)
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 {
		return addr
	}
	return addr[:at] + "@" + strings.ToLower(addr[at+1:])
}

// Valid reports whether addr is a bare address such as "a@b.example".
// Display-name forms are rejected.
func Valid(addr string) bool {
	if addr == "" || len(addr) > MaxLength {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr || parsed.Name != "" {
		return false
	}
	domain := addr[strings.LastIndexByte(addr, '@')+1:]
	return strings.Contains(domain, ".")
}
