package db

import "strings"

// IsUniqueViolation reports whether err is a duplicate-key failure from
// either supported driver. The schema's unique indexes are the real guards
// against concurrent duplicate writes, so stores translate this into the
// domain taxonomy instead of surfacing a generic error.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value violates unique constraint") // postgres
}
