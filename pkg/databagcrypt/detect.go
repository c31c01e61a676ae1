package databagcrypt

import (
	"encoding/json"
	"math"
)

// Status classifies a stored data bag item
type Status int

const (
	// Plaintext items are returned as stored
	Plaintext Status = iota
	// Encrypted items carry version 3 envelopes in every field
	Encrypted
	// Unsupported items carry envelopes this package will not open (version 1 or 2)
	Unsupported
)

func (s Status) String() string {
	switch s {
	case Encrypted:
		return "encrypted"
	case Unsupported:
		return "unsupported"
	default:
		return "plaintext"
	}
}

// Detect reports whether item is encrypted. An item is encrypted only when
// every field except id is an object holding a version key.
func Detect(item map[string]any) Status {
	status := Plaintext
	seen := false

	for k, v := range item {
		if k == IDField {
			continue
		}
		env, ok := v.(map[string]any)
		if !ok {
			return Plaintext
		}
		version, ok := envelopeVersion(env)
		if !ok {
			return Plaintext
		}
		seen = true
		if version != FormatVersion {
			status = Unsupported
		}
	}

	if !seen {
		return Plaintext
	}
	if status == Unsupported {
		return Unsupported
	}
	return Encrypted
}

// envelopeVersion reads the version key, accepting the numeric forms a
// decoded JSON document or a Go caller may use
func envelopeVersion(env map[string]any) (int, bool) {
	raw, ok := env["version"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return -1, true
		}
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return -1, true
		}
		return int(n), true
	default:
		return -1, true
	}
}
