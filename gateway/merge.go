package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// baseKind says how previously stored bytes were turned into the list an
// item is appended to.
type baseKind uint8

const (
	// kindEmpty means there was nothing stored, so the list starts empty.
	kindEmpty baseKind = iota

	// kindList means the stored bytes were a JSON array, used as is.
	kindList

	// kindValue means the stored bytes were some other JSON value, which
	// becomes the only element of the list.
	kindValue

	// kindRaw means the stored bytes were not JSON at all. They become the
	// only element of the list, as a JSON string.
	kindRaw
)

// String implements fmt.Stringer.
func (k baseKind) String() string {
	switch k {
	case kindEmpty:
		return "empty"
	case kindList:
		return "list"
	case kindValue:
		return "value"
	case kindRaw:
		return "raw"
	default:
		return "unknown base kind"
	}
}

// base converts what is stored under the reserved key into a list.
func base(stored []byte) (baseKind, []json.RawMessage, error) {
	if len(stored) == 0 {
		return kindEmpty, nil, nil
	}
	if !json.Valid(stored) {
		s, err := encode(string(stored))
		if err != nil {
			return kindRaw, nil, err
		}
		return kindRaw, []json.RawMessage{s}, nil
	}
	trimmed := bytes.TrimSpace(stored)
	if trimmed[0] != '[' {
		return kindValue, []json.RawMessage{json.RawMessage(trimmed)}, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return kindList, nil, err
	}
	return kindList, list, nil
}

// extract returns the item an append payload stands for: the "value"
// property of an object when it has one, otherwise the whole payload. Falsy
// payloads (nothing, null, false, "" and zero) stand for an empty object.
func extract(payload []byte) (json.RawMessage, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(payload) {
		// Unmarshal to get a proper syntax error.
		var v json.RawMessage
		err := json.Unmarshal(payload, &v)
		return nil, &PayloadError{Err: err}
	}
	if falsy(payload) {
		return json.RawMessage("{}"), nil
	}
	if payload[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(payload, &fields); err != nil {
			return nil, &PayloadError{Err: err}
		}
		if value, ok := fields["value"]; ok {
			return value, nil
		}
	}
	return json.RawMessage(payload), nil
}

// falsy reports whether the valid JSON value b is null, false, the empty
// string or a number equal to zero.
func falsy(b []byte) bool {
	switch string(b) {
	case "null", "false", `""`:
		return true
	}
	if b[0] == '-' || (b[0] >= '0' && b[0] <= '9') {
		f, err := strconv.ParseFloat(string(b), 64)
		return err == nil && f == 0
	}
	return false
}

// encode marshals v without escaping HTML characters, and without the
// trailing newline json.Encoder adds.
func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
