package provider

import (
	"fmt"
	"time"
)

// Ticket is a provider-side ticket as returned by the list endpoint. Most
// attributes live inside FieldMap under provider field keys ("ts.subject",
// "ts.status", "ts.priority"); a few are duplicated at the root.
type Ticket struct {
	Key       string                `json:"key"`
	Subject   string                `json:"subject"`
	CreatedAt int64                 `json:"createdAt"`
	UpdatedAt int64                 `json:"updatedAt"`
	FieldMap  map[string]FieldValue `json:"fieldMap"`
}

// FieldValue mirrors one fieldMap entry. Which of the three slots is
// populated varies by field type, so values stay loosely typed.
type FieldValue struct {
	Value             any `json:"value"`
	UserFriendlyValue any `json:"userFriendlyValue"`
	SerializedValue   any `json:"serializedValue"`
}

// Field extracts a field value by key, preferring userFriendlyValue, then
// value, then serializedValue. Missing keys yield "".
func (t Ticket) Field(key string) string {
	fv, ok := t.FieldMap[key]
	if !ok {
		return ""
	}
	for _, candidate := range []any{fv.UserFriendlyValue, fv.Value, fv.SerializedValue} {
		if s := stringify(candidate); s != "" {
			return s
		}
	}
	return ""
}

// CreatedTime converts the millisecond epoch, zero time when absent.
func (t Ticket) CreatedTime() time.Time {
	return msToTime(t.CreatedAt)
}

// UpdatedTime converts the millisecond epoch, zero time when absent.
func (t Ticket) UpdatedTime() time.Time {
	return msToTime(t.UpdatedAt)
}

func msToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
