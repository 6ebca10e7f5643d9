package discogs

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a UUIDv7 string. Time-ordered ids keep message and fact
// rows roughly insertion-sorted in the stores.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// v7 fails only when the entropy source does; use v4 then.
		return uuid.NewString()
	}
	return id.String()
}

// NowUnix is the timestamp stored on messages, facts and checkpoints.
func NowUnix() int64 {
	return time.Now().Unix()
}
