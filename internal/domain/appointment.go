package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// Active reports whether the status still occupies its time slot. Completed
// appointments are past-but-real bookings and keep blocking the interval;
// only cancellation frees it.
func (s AppointmentStatus) Active() bool {
	return s != AppointmentStatusCancelled
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID           uuid.UUID         `bun:"id,pk,type:uuid"`
	DoctorID     string            `bun:"doctor_id,notnull"`
	PatientName  string            `bun:"patient_name,notnull"`
	PatientEmail string            `bun:"patient_email"`
	PatientPhone string            `bun:"patient_phone"`
	StartTime    time.Time         `bun:"start_time,notnull"`
	EndTime      time.Time         `bun:"end_time,notnull"`
	Status       AppointmentStatus `bun:"status,notnull"`
	CreatedAt    time.Time         `bun:"created_at,notnull"`
	UpdatedAt    time.Time         `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.Status == "" {
			a.Status = AppointmentStatusConfirmed
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}
