package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// decodeObject splits a JSON object into its fields. A non-object yields nil.
func decodeObject(raw []byte) map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(raw), &fields); err != nil {
		return nil
	}
	return fields
}

func lenientString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return ""
	}
	switch t := v.(type) {
	case float64, bool:
		return fmt.Sprint(t)
	case []interface{}:
		return strings.Join(lenientList(raw), "; ")
	}
	return ""
}

// lenientList accepts an array of scalars or a single string.
func lenientList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if s := lenientString(raw); s != "" {
			return []string{s}
		}
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := lenientString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func lenientBool(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	switch strings.ToLower(lenientString(raw)) {
	case "true", "yes", "1", "booked":
		return true
	}
	return false
}

// lenientNumber accepts a JSON number or a numeric string.
func lenientNumber(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
