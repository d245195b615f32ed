package models

import "github.com/google/uuid"

// NewID returns a prefixed, time-ordered identifier such as brd_0190....
func NewID(prefix string) string {
	return prefix + "_" + uuid.Must(uuid.NewV7()).String()
}
