package types

import (
	"bytes"
	"encoding/json"
)

// NullableInt64 tracks whether an integer field was explicitly present in JSON,
// so PATCH handlers can tell "absent" from "set to null".
type NullableInt64 struct {
	Valid bool
	Value *int64
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullableInt64) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if bytes.Equal(trimmed, []byte("null")) {
		n.Valid = true
		n.Value = nil
		return nil
	}

	var parsed int64
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	n.Valid = true
	n.Value = &parsed
	return nil
}

// Clone returns a copy of the NullableInt64.
func (n NullableInt64) Clone() NullableInt64 {
	if n.Value == nil {
		return NullableInt64{Valid: n.Valid}
	}
	copy := *n.Value
	return NullableInt64{Valid: n.Valid, Value: &copy}
}

// NullableString is the string counterpart of NullableInt64.
type NullableString struct {
	Valid bool
	Value *string
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	n.Valid = true
	if bytes.Equal(trimmed, []byte("null")) {
		n.Value = nil
		return nil
	}
	var parsed string
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	n.Value = &parsed
	return nil
}
