package vendorapi

import (
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	newsTimeLayout = "20060102T150405"
)

// The vendor renders absent numerics as "", "None", or "-". The safe casts
// map all of those, and anything unparsable, to nil rather than failing the
// whole record.

func safeFloat(v any) *float64 {
	s, ok := stringValue(v)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func safeInt(v any) *int64 {
	f := safeFloat(v)
	if f == nil {
		return nil
	}
	n := int64(*f)
	return &n
}

func safeDate(v any) *time.Time {
	s, ok := stringValue(v)
	if !ok {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func safeNewsTime(v any) *time.Time {
	s, ok := stringValue(v)
	if !ok {
		return nil
	}
	t, err := time.Parse(newsTimeLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func safeString(v any) *string {
	s, ok := stringValue(v)
	if !ok {
		return nil
	}
	return &s
}

// stringValue normalizes a raw JSON value to its trimmed string form;
// ok is false for the vendor's null markers.
func stringValue(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s = strings.TrimSpace(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return "", false
	}
	if s == "" || s == "None" || s == "-" {
		return "", false
	}
	return s, true
}

func stringField(m map[string]any, key string) string {
	s, _ := stringValue(m[key])
	return s
}
