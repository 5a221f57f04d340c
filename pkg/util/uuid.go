package util

import (
	"crypto/md5"
	"math/big"

	"github.com/google/uuid"
)

// UIDRoot is the arc for UIDs derived from a UUID.
const UIDRoot = "2.25."

// NewUID returns a random UID under 2.25.
func NewUID() string {
	return uuidToUID(uuid.New())
}

// HashUID maps a value to a stable UID under 2.25. The same input always
// produces the same UID.
func HashUID(value string) string {
	sum := md5.Sum([]byte(value))
	u, err := uuid.FromBytes(sum[:])
	if err != nil {
		return ""
	}
	return uuidToUID(u)
}

func uuidToUID(u uuid.UUID) string {
	return UIDRoot + new(big.Int).SetBytes(u[:]).String()
}
