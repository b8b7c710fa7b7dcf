package auth

import (
	"encoding/base64"
	"errors"
	"strings"
)

var (
	// ErrMissingCredential is returned when the request carries no Authorization header.
	ErrMissingCredential = errors.New("missing credential")

	// ErrMalformedCredential is returned when the header is not decodable HTTP Basic.
	ErrMalformedCredential = errors.New("malformed credential")
)

// Credential is a decoded Basic authorization.
type Credential struct {
	User     string
	Password string
}

// DecodeCredential parses an Authorization header value of the form "Basic base64(user:password)".
func DecodeCredential(header string) (Credential, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Credential{}, ErrMissingCredential
	}

	scheme, encoded, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return Credential{}, ErrMalformedCredential
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return Credential{}, ErrMalformedCredential
	}

	user, password, ok := strings.Cut(string(decoded), ":")
	if !ok || user == "" {
		return Credential{}, ErrMalformedCredential
	}
	return Credential{User: user, Password: password}, nil
}

// EncodeCredential renders an Authorization header value for user and password.
func EncodeCredential(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}
