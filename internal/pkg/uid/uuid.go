package uid

import "github.com/google/uuid"

// UUID generates job and correlation IDs. IDs are UUIDv7 so queue entries and
// delivery rows keyed by them sort by creation time.
type UUID struct {
	next func() (uuid.UUID, error)
}

func NewUUID() *UUID {
	return &UUID{next: uuid.NewV7}
}

// Generate falls back to a random v4 when the v7 clock source fails.
func (u *UUID) Generate() string {
	if id, err := u.next(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
