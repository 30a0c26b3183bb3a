package chainutil

import "github.com/google/uuid"

// NewID returns a time based unique id for a transaction.
func NewID() string {
	return uuid.Must(uuid.NewUUID()).String()
}
