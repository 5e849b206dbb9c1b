// README: Identifier type used for users, trips and reservations.
package types

import "github.com/google/uuid"

type ID string

// NewID returns a random UUIDv4 identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string {
	return string(id)
}

// ParseID accepts any non-empty identifier up to 128 bytes.
// Firebase UIDs are not UUIDs, so no stricter format is enforced here.
func ParseID(s string) (ID, bool) {
	if s == "" || len(s) > 128 {
		return "", false
	}
	for _, c := range s {
		if c <= ' ' || c == '/' || c == 0x7f {
			return "", false
		}
	}
	return ID(s), true
}
