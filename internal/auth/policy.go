// Package auth resolves HTTP Basic credentials against a static client policy.
package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aevon-lab/indexer-metrics-collector/internal/schema"
)

// Capability names an operation a client may be granted.
type Capability string

const (
	CapabilitySubmitEvent Capability = "submitEvent"
	CapabilityReadMetrics Capability = "readMetrics"
)

// ErrInvalidPolicy wraps every ParsePolicy failure.
var ErrInvalidPolicy = errors.New("invalid client policy")

// Client is one policy entry. Passwords are plain strings or bcrypt hashes.
type Client struct {
	Passwords    []string
	Capabilities map[Capability]bool
}

// Has reports whether the client was granted capability.
func (c Client) Has(capability Capability) bool {
	return c.Capabilities[capability]
}

// Policy maps client identifiers to their entry. It is immutable once parsed.
type Policy map[string]Client

// Clients returns the client identifiers in sorted order.
func (p Policy) Clients() []string {
	out := make([]string, 0, len(p))
	for id := range p {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var clientPolicySchema = sync.OnceValues(func() (*schema.Schema, error) {
	return schema.NewBuiltinRegistry().Get(schema.ClientPolicySchema)
})

// ParsePolicy validates raw configuration against the ClientPolicy schema and builds a Policy.
// raw may be any value that encodes to a JSON object (decoded YAML, koanf maps, env JSON).
func ParsePolicy(raw any) (Policy, error) {
	s, err := clientPolicySchema()
	if err != nil {
		return nil, err
	}

	doc, err := normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if err := schema.Validate(s, doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}

	policy := make(Policy)
	for id, entry := range doc.(map[string]interface{}) {
		fields := entry.(map[string]interface{})
		client := Client{Capabilities: make(map[Capability]bool)}
		for _, p := range fields["passwords"].([]interface{}) {
			client.Passwords = append(client.Passwords, p.(string))
		}
		for _, c := range fields["capabilities"].([]interface{}) {
			client.Capabilities[Capability(c.(string))] = true
		}
		policy[id] = client
	}
	return policy, nil
}

// ParsePolicyJSON parses a policy given as a JSON document.
func ParsePolicyJSON(data []byte) (Policy, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	return ParsePolicy(raw)
}

// normalize re-encodes raw so the validator sees plain JSON shapes.
func normalize(raw any) (interface{}, error) {
	if raw == nil {
		return map[string]interface{}{}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
