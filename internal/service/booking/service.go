package booking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"clinicbook/backend/internal/domain"
	"clinicbook/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type Service struct {
	repo  store.AppointmentRepository
	hours domain.WorkingHours
}

func NewService(repo store.AppointmentRepository, hours domain.WorkingHours) *Service {
	if hours.EndHour <= hours.StartHour {
		hours = domain.DefaultWorkingHours
	}
	return &Service{repo: repo, hours: hours}
}

// FreeSlots returns the bookable slots for a doctor within the window, at a
// fixed slotMinutes stride, honoring working hours and skipping every
// interval occupied by a non-cancelled appointment.
func (s *Service) FreeSlots(ctx context.Context, doctorID string, windowStart, windowEnd time.Time, slotMinutes int) ([]domain.Slot, error) {
	if doctorID == "" {
		return nil, validationError("doctor_id is required")
	}
	if slotMinutes <= 0 {
		return nil, validationError("slot_minutes must be positive")
	}

	start := windowStart.UTC()
	end := windowEnd.UTC()
	if end.Before(start) {
		return nil, validationError("range_end must not be before range_start")
	}

	existing, err := s.repo.ListActive(ctx, doctorID, start, end)
	if err != nil {
		return nil, err
	}

	return domain.ComputeFreeSlots(existing, start, end, slotMinutes, s.hours), nil
}

type BookInput struct {
	DoctorID        string
	PatientName     string
	PatientEmail    string
	PatientPhone    string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	IdempotencyKey  string
}

// Book validates the proposed interval and inserts it unless it overlaps an
// existing non-cancelled appointment for the doctor; a *store.ConflictError
// carries the colliding interval. EndTime wins when both EndTime and
// DurationMinutes are supplied.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	if in.DoctorID == "" {
		return domain.Appointment{}, validationError("doctor_id is required")
	}
	name := strings.TrimSpace(in.PatientName)
	if name == "" {
		return domain.Appointment{}, validationError("patient name is required")
	}

	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if in.EndTime.IsZero() {
		if in.DurationMinutes <= 0 {
			return domain.Appointment{}, validationError("end_time or duration_minutes is required")
		}
		end = start.Add(time.Duration(in.DurationMinutes) * time.Minute)
	}
	if end.Equal(start) || end.Before(start) {
		return domain.Appointment{}, validationError("end_time must be after start_time")
	}
	if end.Sub(start) > 24*time.Hour {
		return domain.Appointment{}, validationError("duration too long")
	}

	appt := domain.Appointment{
		DoctorID:     in.DoctorID,
		PatientName:  name,
		PatientEmail: strings.TrimSpace(in.PatientEmail),
		PatientPhone: strings.TrimSpace(in.PatientPhone),
		StartTime:    start,
		EndTime:      end,
		Status:       domain.AppointmentStatusConfirmed,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Appointment{}, validationError("idempotency_key too long")
		}
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("clinicbook:book_appointment:"+in.DoctorID+":"+key))
	}

	return s.repo.Book(ctx, appt)
}

// Cancel marks the appointment cancelled. Cancelling twice is a no-op
// success; only an unknown id fails.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID) error {
	if appointmentID == uuid.Nil {
		return validationError("appointment_id is required")
	}
	return s.repo.Cancel(ctx, appointmentID)
}

func (s *Service) Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	return s.repo.Get(ctx, appointmentID)
}

func (s *Service) List(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if doctorID == "" {
		return nil, validationError("doctor_id is required")
	}

	start := windowStart.UTC()
	end := windowEnd.UTC()
	if end.Equal(start) || end.Before(start) {
		return nil, validationError("window_end must be after window_start")
	}

	return s.repo.ListActive(ctx, doctorID, start, end)
}
