// Package ids mints the identifiers used for storage keys across the
// service.
package ids

import "github.com/oklog/ulid/v2"

// New returns a lexicographically sortable identifier. ULIDs keep index
// locality for time-ordered inserts.
func New() string {
	return ulid.Make().String()
}
