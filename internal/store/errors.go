package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)

// ConflictError reports that a proposed booking overlaps an existing
// non-cancelled appointment. The colliding interval is carried so callers
// can explain the rejection.
type ConflictError struct {
	AppointmentID uuid.UUID
	StartTime     time.Time
	EndTime       time.Time
}

func (e *ConflictError) Error() string {
	if e.AppointmentID == uuid.Nil {
		return "booking conflicts with an existing appointment"
	}
	return fmt.Sprintf(
		"booking conflicts with appointment %s [%s, %s)",
		e.AppointmentID,
		e.StartTime.UTC().Format(time.RFC3339),
		e.EndTime.UTC().Format(time.RFC3339),
	)
}
