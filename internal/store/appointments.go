package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"clinicbook/backend/internal/domain"
)

type AppointmentRepository interface {
	// Book inserts the appointment if no non-cancelled appointment for the
	// same doctor overlaps it, returning *ConflictError otherwise. The
	// check and the insert are serialized per doctor.
	Book(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)

	// ListActive returns the non-cancelled appointments for a doctor whose
	// intervals intersect [windowStart, windowEnd), ordered by start time.
	ListActive(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)

	// Cancel marks the appointment cancelled. Cancelling an already-cancelled
	// appointment is a no-op success; an unknown id is ErrNotFound.
	Cancel(ctx context.Context, appointmentID uuid.UUID) error

	Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
}
