package ident

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Key is an ordered tuple of fields uniquely naming one unit of work.
// Keys are never mutated after construction.
type Key []Field

// Of builds a Key from fields.
// Example: ident.Of(ident.S("pbe"), ident.I(42))
func Of(fields ...Field) Key {
	return Key(fields)
}

// domainIdentity prefixes identity digests. The version suffix enables
// future algorithm migration.
const domainIdentity = "sluice/identity/v1"

// Canon produces the RFC 8785 canonical JSON array for the key.
// This is the ONLY serialization used for set membership and for the
// identity column in the store.
//
// Differences from standard json.Marshal:
//  1. No HTML escaping (< > & are NOT escaped)
//  2. Strings are NFC normalized
//  3. U+2028 and U+2029 are NOT escaped
//
// A nil field is an error: a key with a missing field names nothing.
func (k Key) Canon() (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, f := range k {
		if i > 0 {
			buf.WriteByte(',')
		}
		switch v := f.(type) {
		case nil:
			return "", fmt.Errorf("field %d: nil field in key", i)
		case FieldString:
			b, err := canonString(string(v))
			if err != nil {
				return "", fmt.Errorf("field %d: %w", i, err)
			}
			buf.Write(b)
		case FieldInt:
			buf.WriteString(strconv.FormatInt(int64(v), 10))
		case FieldBool:
			buf.WriteString(strconv.FormatBool(bool(v)))
		default:
			return "", fmt.Errorf("field %d: unsupported field type %T", i, f)
		}
	}
	buf.WriteByte(']')
	return buf.String(), nil
}

// MustCanon is like Canon but panics on error.
// Use only in tests or when the key is known to be well formed.
func (k Key) MustCanon() string {
	c, err := k.Canon()
	if err != nil {
		panic(err)
	}
	return c
}

// Digest computes the domain-separated SHA-256 of the canonical form,
// hex encoded. Format: SHA256(domain + 0x00 + canon). The null byte
// separator prevents domain/data boundary ambiguity. Digests appear in
// logs where the full canon would be noisy.
func (k Key) Digest() (string, error) {
	c, err := k.Canon()
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(domainIdentity))
	h.Write([]byte{0x00})
	h.Write([]byte(c))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Equal reports whether two keys have identical fields.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] == nil || other[i] == nil {
			if k[i] != other[i] {
				return false
			}
			continue
		}
		if compareFields(k[i], other[i]) != 0 {
			return false
		}
	}
	return true
}

// String renders the key for humans, e.g. (pbe, 42, true).
// Not a serialization format; use Canon for that.
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, f := range k {
		switch v := f.(type) {
		case FieldString:
			parts[i] = string(v)
		case FieldInt:
			parts[i] = strconv.FormatInt(int64(v), 10)
		case FieldBool:
			parts[i] = strconv.FormatBool(bool(v))
		default:
			parts[i] = "<nil>"
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Compare orders keys field by field: integers before strings before
// booleans, values ascending within a type, shorter key first when one
// is a prefix of the other. This is the natural ascending order batch
// selection defaults to.
func Compare(a, b Key) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := compareFields(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Sort orders keys in place by Compare.
func Sort(keys []Key) {
	slices.SortStableFunc(keys, Compare)
}

// ParseCanon rebuilds a key from its canonical form.
// Rejects null, floats, and nested values, mirroring what Canon emits.
func ParseCanon(canon string) (Key, error) {
	dec := json.NewDecoder(strings.NewReader(canon))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse identity %q: %w", canon, err)
	}

	key := make(Key, len(raw))
	for i, elem := range raw {
		f, err := fieldFromAny(elem)
		if err != nil {
			return nil, fmt.Errorf("parse identity %q: field %d: %w", canon, i, err)
		}
		key[i] = f
	}
	return key, nil
}

// canonString encodes one string per RFC 8785: NFC normalized, no HTML
// escaping, U+2028/U+2029 left literal.
func canonString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline, remove it.
	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}

	return unescapeLineSeparators(out), nil
}

// unescapeLineSeparators rewrites \u2028 and \u2029 escapes to literal
// characters. Go's encoder escapes them for JavaScript embedding, which
// RFC 8785 forbids. A sequence preceded by an odd run of backslashes is
// literal text ("\\u2028" in the source string) and must stay escaped.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		if data[i] == '\\' && i+6 <= len(data) &&
			bytes.HasPrefix(data[i:], []byte(`\u202`)) &&
			(data[i+5] == '8' || data[i+5] == '9') {
			run := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				run++
			}
			if run%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 6
				continue
			}
		}
		out = append(out, data[i])
		i++
	}
	return out
}
