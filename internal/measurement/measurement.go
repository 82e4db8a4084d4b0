// Package measurement provides a tagged-optional wrapper for weather
// sensor readings so that an invalid reading can never silently become a
// zero value.
package measurement

import "encoding/json"

// Measurement is either a valid value of type T or an explicit invalid
// marker. It replaces the sentinel-value convention used by the Davis
// protocol on the wire (0x7FFF, 0xFF, -32768, ...) once a value has
// crossed the decoder boundary.
type Measurement[T any] struct {
	value T
	valid bool
}

// Valid returns a Measurement holding v.
func Valid[T any](v T) Measurement[T] {
	return Measurement[T]{value: v, valid: true}
}

// Invalid returns a Measurement with no value.
func Invalid[T any]() Measurement[T] {
	return Measurement[T]{}
}

// IsValid reports whether the measurement holds a value.
func (m Measurement[T]) IsValid() bool {
	return m.valid
}

// Value returns the held value, or the zero value of T if invalid.
// Callers that need to distinguish "invalid" from "zero" must use Get.
func (m Measurement[T]) Value() T {
	return m.value
}

// Get returns the held value and whether it is valid.
func (m Measurement[T]) Get() (T, bool) {
	return m.value, m.valid
}

// Or returns the held value if valid, otherwise fallback.
func (m Measurement[T]) Or(fallback T) T {
	if m.valid {
		return m.value
	}
	return fallback
}

// Map applies f to the held value if valid, propagating invalidity.
func Map[T, U any](m Measurement[T], f func(T) U) Measurement[U] {
	if !m.valid {
		return Invalid[U]()
	}
	return Valid(f(m.value))
}

// MarshalJSON encodes a valid measurement as its value and an invalid one
// as null, so invalid readings never masquerade as zero in a response.
func (m Measurement[T]) MarshalJSON() ([]byte, error) {
	if !m.valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

// UnmarshalJSON decodes null as invalid and anything else as a valid value.
func (m *Measurement[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Invalid[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Valid(v)
	return nil
}
