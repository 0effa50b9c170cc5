// Package auth builds the credentials the local client API expects: HTTP Basic
// authorization and the base64 codec used for both the header and the
// base64-wrapped presence payloads.
package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"
)

// DefaultUsername is the fixed user the local client API authenticates.
const DefaultUsername = "riot"

// Encode returns the padded standard base64 encoding of data.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode decodes standard base64, ignoring embedded whitespace and
// tolerating missing trailing padding.
func Decode(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}

	out, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return out, nil
}

// BasicAuthHeader returns the value for an Authorization header using HTTP
// Basic authentication.
func BasicAuthHeader(user, password string) string {
	return "Basic " + Encode([]byte(user+":"+password))
}
