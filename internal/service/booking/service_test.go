package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"clinicbook/backend/internal/domain"
	"clinicbook/backend/internal/store"
)

type fakeRepo struct {
	bookFn       func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	listActiveFn func(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	cancelFn     func(ctx context.Context, appointmentID uuid.UUID) error
	getFn        func(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
}

func (f *fakeRepo) Book(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if f.bookFn == nil {
		panic("Book not configured")
	}
	return f.bookFn(ctx, appt)
}

func (f *fakeRepo) ListActive(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if f.listActiveFn == nil {
		panic("ListActive not configured")
	}
	return f.listActiveFn(ctx, doctorID, windowStart, windowEnd)
}

func (f *fakeRepo) Cancel(ctx context.Context, appointmentID uuid.UUID) error {
	if f.cancelFn == nil {
		panic("Cancel not configured")
	}
	return f.cancelFn(ctx, appointmentID)
}

func (f *fakeRepo) Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if f.getFn == nil {
		panic("Get not configured")
	}
	return f.getFn(ctx, appointmentID)
}

func TestServiceFreeSlots_ValidationErrorType(t *testing.T) {
	svc := NewService(&fakeRepo{}, domain.DefaultWorkingHours)

	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.FreeSlots(context.Background(), "d1", day.Add(12*time.Hour), day.Add(9*time.Hour), 30)
	if err == nil {
		t.Fatalf("expected error")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}

	_, err = svc.FreeSlots(context.Background(), "", day.Add(9*time.Hour), day.Add(12*time.Hour), 30)
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}

	_, err = svc.FreeSlots(context.Background(), "d1", day.Add(9*time.Hour), day.Add(12*time.Hour), 0)
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
}

func TestServiceFreeSlots_ZeroLengthWindowIsEmptyNotError(t *testing.T) {
	svc := NewService(&fakeRepo{
		listActiveFn: func(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
			return nil, nil
		},
	}, domain.DefaultWorkingHours)

	at := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	slots, err := svc.FreeSlots(context.Background(), "d1", at, at, 30)
	if err != nil {
		t.Fatalf("FreeSlots error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("len(slots) = %d, want 0", len(slots))
	}
}

func TestServiceFreeSlots_SkipsBookedIntervals(t *testing.T) {
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	svc := NewService(&fakeRepo{
		listActiveFn: func(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
			return []domain.Appointment{
				{
					DoctorID:  doctorID,
					StartTime: day.Add(10 * time.Hour),
					EndTime:   day.Add(10*time.Hour + 30*time.Minute),
					Status:    domain.AppointmentStatusConfirmed,
				},
			}, nil
		},
	}, domain.DefaultWorkingHours)

	slots, err := svc.FreeSlots(context.Background(), "d1", day.Add(9*time.Hour), day.Add(12*time.Hour), 30)
	if err != nil {
		t.Fatalf("FreeSlots error: %v", err)
	}
	if len(slots) != 5 {
		t.Fatalf("len(slots) = %d, want 5", len(slots))
	}
	for _, s := range slots {
		if domain.Overlaps(s.Start, s.End, day.Add(10*time.Hour), day.Add(10*time.Hour+30*time.Minute)) {
			t.Fatalf("slot %v overlaps booked interval", s)
		}
	}
}

func TestServiceBook_NormalizesToUTCAndTrims(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}

	var got domain.Appointment
	svc := NewService(&fakeRepo{
		bookFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			got = appt
			return appt, nil
		},
	}, domain.DefaultWorkingHours)

	_, err = svc.Book(context.Background(), BookInput{
		DoctorID:    "d1",
		PatientName: "  Ada Lovelace  ",
		StartTime:   time.Date(2026, 1, 10, 9, 0, 0, 0, loc),
		EndTime:     time.Date(2026, 1, 10, 9, 30, 0, 0, loc),
	})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if got.PatientName != "Ada Lovelace" {
		t.Fatalf("patient name = %q, want %q", got.PatientName, "Ada Lovelace")
	}
	if got.StartTime.Location() != time.UTC || got.EndTime.Location() != time.UTC {
		t.Fatalf("expected UTC times, got start=%v end=%v", got.StartTime, got.EndTime)
	}
	if got.Status != domain.AppointmentStatusConfirmed {
		t.Fatalf("status = %s, want confirmed", got.Status)
	}
}

func TestServiceBook_DurationMinutesDerivesEndTime(t *testing.T) {
	var got domain.Appointment
	svc := NewService(&fakeRepo{
		bookFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			got = appt
			return appt, nil
		},
	}, domain.DefaultWorkingHours)

	start := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)
	_, err := svc.Book(context.Background(), BookInput{
		DoctorID:        "d1",
		PatientName:     "Ada",
		StartTime:       start,
		DurationMinutes: 45,
	})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if !got.EndTime.Equal(start.Add(45 * time.Minute)) {
		t.Fatalf("end = %v, want %v", got.EndTime, start.Add(45*time.Minute))
	}
}

func TestServiceBook_RejectsInvalidInterval(t *testing.T) {
	svc := NewService(&fakeRepo{
		bookFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			return appt, nil
		},
	}, domain.DefaultWorkingHours)

	start := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)

	var vErr *ValidationError
	_, err := svc.Book(context.Background(), BookInput{
		DoctorID:    "d1",
		PatientName: "Ada",
		StartTime:   start,
		EndTime:     start,
	})
	if !errors.As(err, &vErr) {
		t.Fatalf("zero interval: error type = %T, want *ValidationError", err)
	}

	_, err = svc.Book(context.Background(), BookInput{
		DoctorID:    "d1",
		PatientName: "Ada",
		StartTime:   start,
		EndTime:     start.Add(-time.Hour),
	})
	if !errors.As(err, &vErr) {
		t.Fatalf("reversed interval: error type = %T, want *ValidationError", err)
	}

	_, err = svc.Book(context.Background(), BookInput{
		DoctorID:    "d1",
		PatientName: "Ada",
		StartTime:   start,
	})
	if !errors.As(err, &vErr) {
		t.Fatalf("missing end: error type = %T, want *ValidationError", err)
	}
}

func TestServiceBook_IdempotencyKeyDeterministicUUID(t *testing.T) {
	var ids []uuid.UUID
	svc := NewService(&fakeRepo{
		bookFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			ids = append(ids, appt.ID)
			return appt, nil
		},
	}, domain.DefaultWorkingHours)

	start := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)
	in := BookInput{
		DoctorID:       "d1",
		PatientName:    "Ada",
		StartTime:      start,
		EndTime:        start.Add(30 * time.Minute),
		IdempotencyKey: "k1",
	}

	if _, err := svc.Book(context.Background(), in); err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if _, err := svc.Book(context.Background(), in); err != nil {
		t.Fatalf("Book error: %v", err)
	}
	in.IdempotencyKey = "k2"
	if _, err := svc.Book(context.Background(), in); err != nil {
		t.Fatalf("Book error: %v", err)
	}

	if len(ids) != 3 {
		t.Fatalf("captured ids = %d, want 3", len(ids))
	}
	if ids[0] == uuid.Nil {
		t.Fatalf("expected non-nil id")
	}
	if ids[0] != ids[1] {
		t.Fatalf("same key produced different ids: %s vs %s", ids[0], ids[1])
	}
	if ids[0] == ids[2] {
		t.Fatalf("different keys produced the same id: %s", ids[0])
	}
}

func TestServiceBook_PropagatesConflictUntouched(t *testing.T) {
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	conflicting := &store.ConflictError{
		AppointmentID: uuid.MustParse("00000000-0000-0000-0000-000000000501"),
		StartTime:     day.Add(10 * time.Hour),
		EndTime:       day.Add(10*time.Hour + 30*time.Minute),
	}

	svc := NewService(&fakeRepo{
		bookFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			return domain.Appointment{}, conflicting
		},
	}, domain.DefaultWorkingHours)

	_, err := svc.Book(context.Background(), BookInput{
		DoctorID:    "d1",
		PatientName: "Ada",
		StartTime:   day.Add(10*time.Hour + 15*time.Minute),
		EndTime:     day.Add(10*time.Hour + 45*time.Minute),
	})
	var cErr *store.ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("error type = %T, want *store.ConflictError", err)
	}
	if cErr.AppointmentID != conflicting.AppointmentID {
		t.Fatalf("conflicting id = %s, want %s", cErr.AppointmentID, conflicting.AppointmentID)
	}
}

func TestServiceCancel(t *testing.T) {
	var canceled uuid.UUID
	svc := NewService(&fakeRepo{
		cancelFn: func(ctx context.Context, appointmentID uuid.UUID) error {
			canceled = appointmentID
			return nil
		},
	}, domain.DefaultWorkingHours)

	id := uuid.MustParse("00000000-0000-0000-0000-000000000601")
	if err := svc.Cancel(context.Background(), id); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if canceled != id {
		t.Fatalf("canceled id = %s, want %s", canceled, id)
	}

	var vErr *ValidationError
	if err := svc.Cancel(context.Background(), uuid.Nil); !errors.As(err, &vErr) {
		t.Fatalf("nil id: error type = %T, want *ValidationError", err)
	}

	svc = NewService(&fakeRepo{
		cancelFn: func(ctx context.Context, appointmentID uuid.UUID) error {
			return store.ErrNotFound
		},
	}, domain.DefaultWorkingHours)
	if err := svc.Cancel(context.Background(), id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, store.ErrNotFound)
	}
}
