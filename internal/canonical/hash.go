// Package canonical produces deterministic, key-order independent encodings and the
// integrity hashes built on them.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Canonicalize renders v as JSON with object keys sorted at every depth. Array order is
// preserved and HTML characters are not escaped.
func Canonicalize(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// maps are emitted with sorted keys
	if err := enc.Encode(generic); err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// Hash returns "0x" + hex(sha256(canonical form of v)). A string is hashed as-is so
// callers can hash a message they already canonicalized.
func Hash(v any) (string, error) {
	if s, ok := v.(string); ok {
		return sum(s), nil
	}
	c, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return sum(c), nil
}

// MustHash is Hash for values built from plain maps, strings and numbers.
func MustHash(v any) string {
	h, err := Hash(v)
	if err != nil {
		panic(err)
	}
	return h
}

// HashToken hashes a bearer credential for storage.
func HashToken(token string) string {
	s := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(s[:])
}

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return "0x" + hex.EncodeToString(h[:])
}
