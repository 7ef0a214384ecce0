// Package session persists finished test attempts into the unified
// test_sessions table and migrates legacy result rows into it.
package session

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Encode serializes a document to the canonical text encoding stored in
// the *_json columns. Decode(Encode(x)) round-trips any
// JSON-representable structure.
func Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "session: encode document")
	}
	return string(b), nil
}

// Decode parses a stored document back into v.
func Decode(s string, v any) error {
	return eris.Wrap(json.Unmarshal([]byte(s), v), "session: decode document")
}
