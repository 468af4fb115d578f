package cache

import (
	"fmt"
	"net/url"
	"strings"
)

// KeyPrefix namespaces every key written by this module.
const KeyPrefix = "tripcost"

// Key identifies a cached result of one upstream operation.
type Key struct {
	// Operation is the logical operation name (e.g., "match_details")
	Operation string

	// Params are the operation arguments in call order
	Params []string
}

// NewKey builds a Key, formatting each parameter with fmt.Sprint.
func NewKey(operation string, params ...any) Key {
	k := Key{Operation: operation, Params: make([]string, 0, len(params))}
	for _, p := range params {
		k.Params = append(k.Params, fmt.Sprint(p))
	}
	return k
}

// String generates a deterministic cache key string.
// Format: tripcost:operation:param1:param2
//
// Parameters keep their call order and are query-escaped, so a ':' inside a
// parameter can never be confused with a separator.
//
// Example:
//
//	tripcost:flight:London:Madrid:2024-03-10
func (k Key) String() string {
	parts := make([]string, 0, len(k.Params)+2)
	parts = append(parts, KeyPrefix)

	op := strings.Trim(k.Operation, ":")
	if op != "" {
		parts = append(parts, url.QueryEscape(op))
	}

	for _, p := range k.Params {
		parts = append(parts, url.QueryEscape(p))
	}

	return strings.Join(parts, ":")
}
