package dicom

import "github.com/jpfielding/dicom.go/pkg/util"

// GenerateUID returns a new unique identifier. With a prefix the UID is
// prefix plus the UUID derived digits, otherwise it sits under 2.25.
func GenerateUID(prefix string) string {
	return rebase(prefix, util.NewUID())
}

// HashedUID is GenerateUID with digits derived from value, so the same
// prefix and value always give the same UID.
func HashedUID(prefix, value string) string {
	return rebase(prefix, util.HashUID(value))
}

func rebase(prefix, uid string) string {
	if prefix == "" {
		return uid
	}
	if prefix[len(prefix)-1] != '.' {
		prefix += "."
	}
	uid = prefix + uid[len(util.UIDRoot):]
	if len(uid) > 64 {
		uid = uid[:64]
	}
	return uid
}
