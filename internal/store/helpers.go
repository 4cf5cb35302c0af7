package store

import (
	"encoding/json"
	"strings"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// int64sToArgs converts []int64 to []any for use with database/sql.
func int64sToArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// marshalNames converts []string to JSON text for storage.
func marshalNames(names []string) string {
	if len(names) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(names)
	return string(b)
}

// UnmarshalNames converts JSON text back to []string.
// Exported for use by QueryBuilder.
func UnmarshalNames(s string) []string {
	return unmarshalNames(s)
}

// unmarshalNames converts JSON text back to []string.
func unmarshalNames(s string) []string {
	if s == "" || s == "null" {
		return nil
	}
	var names []string
	_ = json.Unmarshal([]byte(s), &names)
	return names
}

// marshalLocations converts []Location to JSON text for storage.
func marshalLocations(locs []Location) string {
	if len(locs) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(locs)
	return string(b)
}

// UnmarshalLocations converts JSON text back to []Location.
// Exported for use by QueryBuilder.
func UnmarshalLocations(s string) []Location {
	return unmarshalLocations(s)
}

// unmarshalLocations converts JSON text back to []Location.
func unmarshalLocations(s string) []Location {
	if s == "" || s == "null" {
		return nil
	}
	var locs []Location
	_ = json.Unmarshal([]byte(s), &locs)
	return locs
}
