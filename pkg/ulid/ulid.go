// Package ulid wraps oklog/ulid with the small surface Heimsight needs for
// request identifiers.
package ulid

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULID is a lexicographically sortable unique identifier.
type ULID struct {
	ulid.ULID
}

// New generates a new ULID with the current timestamp.
func New() ULID {
	return ULID{ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)}
}

// Parse parses a ULID string.
func Parse(s string) (ULID, error) {
	parsed, err := ulid.Parse(s)
	if err != nil {
		return ULID{}, err
	}
	return ULID{parsed}, nil
}

// String returns the canonical 26-character representation.
func (u ULID) String() string {
	return u.ULID.String()
}

// Time returns the timestamp encoded in the ULID.
func (u ULID) Time() time.Time {
	return time.UnixMilli(int64(u.ULID.Time()))
}
