package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// MarshalNoEscape encodes v into JSON without escaping <, >, & into \u003c, etc.
func MarshalNoEscape(v any) ([]byte, error) {
	return encode(v, "")
}

// MarshalNoEscapeIndent is MarshalNoEscape with indentation.
func MarshalNoEscapeIndent(v any, indent string) ([]byte, error) {
	return encode(v, indent)
}

// WriteIndent streams v to w as indented JSON without HTML escaping,
// followed by a newline.
func WriteIndent(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func encode(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Remove trailing newline from json.Encoder.Encode
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalFlex tries to unmarshal JSON bytes into v with best effort:
// 1) Direct unmarshal
// 2) Unwrap a JSON string that itself holds the object, then unmarshal
// Models sometimes return the object quoted as a string.
func UnmarshalFlex(raw []byte, v any) error {
	err := json.Unmarshal(raw, v)
	if err == nil {
		return nil
	}
	inner, uerr := unquote(raw)
	if uerr != nil {
		return err
	}
	return json.Unmarshal(inner, v)
}

// unquote unwraps up to two levels of JSON string encoding around an object.
func unquote(raw []byte) ([]byte, error) {
	cur := bytes.TrimSpace(raw)
	for i := 0; i < 2; i++ {
		if len(cur) == 0 || cur[0] != '"' {
			break
		}
		var s string
		if err := json.Unmarshal(cur, &s); err != nil {
			return nil, err
		}
		cur = []byte(strings.TrimSpace(s))
	}
	if len(cur) == 0 || cur[0] != '{' {
		return nil, errors.New("jsonutil: payload is not a JSON object")
	}
	return cur, nil
}
