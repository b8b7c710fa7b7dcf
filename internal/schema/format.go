package schema

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// Built-in string formats.
const (
	FormatDateTime = "date-time"
	FormatURI      = "uri"
)

// FormatChecker decides whether a string satisfies a named format.
type FormatChecker interface {
	IsFormat(value string) bool
}

// FormatCheckerFunc adapts a plain function to FormatChecker.
type FormatCheckerFunc func(value string) bool

// IsFormat implements FormatChecker.
func (f FormatCheckerFunc) IsFormat(value string) bool { return f(value) }

// FormatRegistry manages the string format checkers available to schema compilation.
// Formats are resolved once at compile time, so validation never consults the registry.
type FormatRegistry struct {
	mu       sync.RWMutex
	checkers map[string]FormatChecker
}

// NewFormatRegistry creates an empty format registry.
func NewFormatRegistry() *FormatRegistry {
	return &FormatRegistry{
		checkers: make(map[string]FormatChecker),
	}
}

// NewDefaultFormatRegistry creates a registry with the date-time and uri formats.
func NewDefaultFormatRegistry() *FormatRegistry {
	r := NewFormatRegistry()
	r.RegisterFormat(FormatDateTime, FormatCheckerFunc(IsDateTime))
	r.RegisterFormat(FormatURI, FormatCheckerFunc(IsURI))
	return r
}

// RegisterFormat registers (or replaces) the checker for a format name.
func (r *FormatRegistry) RegisterFormat(name string, checker FormatChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checkers[name] = checker
}

// GetChecker retrieves the checker for a format.
// Returns error if the format is not registered.
func (r *FormatRegistry) GetChecker(name string) (FormatChecker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	checker, exists := r.checkers[name]
	if !exists {
		return nil, fmt.Errorf("unsupported string format: %s", name)
	}
	return checker, nil
}

// IsFormatSupported checks if a format has been registered.
func (r *FormatRegistry) IsFormatSupported(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.checkers[name]
	return exists
}

// SupportedFormats returns the registered format names, sorted.
func (r *FormatRegistry) SupportedFormats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	formats := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		formats = append(formats, name)
	}
	sort.Strings(formats)
	return formats
}

// IsDateTime reports whether s is an RFC 3339 timestamp with an explicit zone.
// Fractional seconds are accepted.
func IsDateTime(s string) bool {
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

// IsURI reports whether s is an absolute URI (it must carry a scheme).
func IsURI(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.IsAbs()
}
