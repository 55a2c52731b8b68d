package store

import (
	"context"
	"time"

	"clinicbook/backend/internal/domain"
)

// DoctorTx groups the appointment operations that must run inside a single
// transaction holding the doctor's calendar lock. Two concurrent booking
// attempts for the same doctor serialize on that lock; different doctors
// never contend.
type DoctorTx interface {
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	ListActiveAppointments(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
}
