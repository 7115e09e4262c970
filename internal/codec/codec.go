// Package codec holds the JSON rules shared by every IPC payload.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotObject is returned when a payload parses as JSON but is not an object.
var ErrNotObject = errors.New("json payload is not an object")

// Marshal encodes v as compact JSON. Non-finite floats and unsupported
// types are reported as errors by encoding/json.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes data into v, rejecting trailing garbage after the first value.
func Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after json value")
	}
	return nil
}

// UnmarshalObject decodes data as a single JSON object.
func UnmarshalObject(data []byte) (map[string]any, error) {
	var v any
	if err := Unmarshal(data, &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}

// String returns doc[key] when it is a string.
func String(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

// Object returns doc[key] when it is a JSON object.
func Object(doc map[string]any, key string) map[string]any {
	m, _ := doc[key].(map[string]any)
	return m
}

// Int returns doc[key] when it is a number, truncated to int.
func Int(doc map[string]any, key string) int {
	switch n := doc[key].(type) {
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}
