package utils

import "github.com/google/uuid"

func IsUUID(s string) bool {
	// uuid.Parse also accepts urn and braced forms, ids here are always canonical
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
