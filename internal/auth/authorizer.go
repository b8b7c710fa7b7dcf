package auth

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DenyReason is the operator-facing cause of a denial. It is logged, never returned to callers.
type DenyReason string

const (
	ReasonUnknownClient     DenyReason = "unknown_client"
	ReasonBadPassword       DenyReason = "bad_password"
	ReasonMissingCapability DenyReason = "missing_capability"
)

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Authorizer checks credentials against an immutable policy.
type Authorizer struct {
	policy Policy
}

func NewAuthorizer(policy Policy) *Authorizer {
	return &Authorizer{policy: policy}
}

// Authorize decides whether cred may perform capability.
func (a *Authorizer) Authorize(cred Credential, capability Capability) Decision {
	decision := a.decide(cred, capability)
	if !decision.Allowed {
		slog.Warn("[Auth] Request denied",
			"client", cred.User,
			"capability", capability,
			"reason", decision.Reason)
	}
	return decision
}

func (a *Authorizer) decide(cred Credential, capability Capability) Decision {
	client, ok := a.policy[cred.User]
	if !ok {
		return Decision{Reason: ReasonUnknownClient}
	}
	if !matchesAny(client.Passwords, cred.Password) {
		return Decision{Reason: ReasonBadPassword}
	}
	if !client.Has(capability) {
		return Decision{Reason: ReasonMissingCapability}
	}
	return Decision{Allowed: true}
}

// matchesAny checks every stored password so the time taken does not depend on which one matched.
func matchesAny(stored []string, password string) bool {
	matched := false
	for _, s := range stored {
		if passwordMatches(s, password) {
			matched = true
		}
	}
	return matched
}

func passwordMatches(stored, password string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// HashPassword returns a bcrypt hash usable as a policy password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
