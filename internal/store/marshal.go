package store

import (
	"fmt"
	"time"

	"github.com/finos/morphir-scala/internal/canon"
)

// timeLayout keeps sub-second precision and sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// marshalOptions converts run options to canonical JSON TEXT for storage.
func marshalOptions(opts canon.Object) (string, error) {
	if opts == nil {
		return "{}", nil
	}
	data, err := canon.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("marshal options: %w", err)
	}
	return string(data), nil
}

func unmarshalOptions(data string) (canon.Object, error) {
	if data == "" || data == "{}" {
		return canon.Object{}, nil
	}
	v, err := canon.Unmarshal([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	obj, ok := v.(canon.Object)
	if !ok {
		return nil, fmt.Errorf("unmarshal options: expected object, found %T", v)
	}
	return obj, nil
}
