package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"clinicbook/backend/internal/domain"
	"clinicbook/backend/internal/store"
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

type doctorTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) Book(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.InDoctorTransaction(ctx, appt.DoctorID, func(ctx context.Context, tx store.DoctorTx) error {
		if err := ensureNoBookingConflict(ctx, tx, appt); err != nil {
			return err
		}
		a, err := tx.CreateAppointment(ctx, appt)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *AppointmentRepo) ListActive(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("doctor_id = ?", doctorID).
		Where("status != ?", domain.AppointmentStatusCancelled).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) Cancel(ctx context.Context, appointmentID uuid.UUID) error {
	// Cancelling twice rewrites the same status and reports success; only a
	// nonexistent id is an error.
	res, err := r.db.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("status = ?", domain.AppointmentStatusCancelled).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", appointmentID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *AppointmentRepo) Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("id = ?", appointmentID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

// InDoctorTransaction runs fn inside a transaction holding an advisory lock
// on the doctor's calendar, serializing check-then-insert per doctor.
func (r *AppointmentRepo) InDoctorTransaction(ctx context.Context, doctorID string, fn func(ctx context.Context, tx store.DoctorTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockDoctorCalendar(ctx, tx, doctorID); err != nil {
			return err
		}
		return fn(ctx, doctorTx{tx: tx})
	})
}

func lockDoctorCalendar(ctx context.Context, tx bun.Tx, doctorID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", doctorID).Exec(ctx)
	return err
}

func ensureNoBookingConflict(ctx context.Context, tx store.DoctorTx, appt domain.Appointment) error {
	existing, err := tx.ListActiveAppointments(ctx, appt.DoctorID, appt.StartTime, appt.EndTime)
	if err != nil {
		return err
	}
	if c := firstConflict(existing, appt); c != nil {
		return c
	}
	return nil
}

// firstConflict returns the earliest active appointment overlapping the
// proposed one, skipping a row with the proposed appointment's own id so an
// idempotent replay falls through to the duplicate-key path on insert.
func firstConflict(existing []domain.Appointment, appt domain.Appointment) *store.ConflictError {
	start := appt.StartTime.UTC()
	end := appt.EndTime.UTC()
	for _, e := range existing {
		if e.ID != uuid.Nil && e.ID == appt.ID {
			continue
		}
		if !e.Status.Active() {
			continue
		}
		if domain.Overlaps(start, end, e.StartTime.UTC(), e.EndTime.UTC()) {
			return &store.ConflictError{
				AppointmentID: e.ID,
				StartTime:     e.StartTime.UTC(),
				EndTime:       e.EndTime.UTC(),
			}
		}
	}
	return nil
}

func (r doctorTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := domain.Appointment{
		ID:           appt.ID,
		DoctorID:     appt.DoctorID,
		PatientName:  appt.PatientName,
		PatientEmail: appt.PatientEmail,
		PatientPhone: appt.PatientPhone,
		StartTime:    appt.StartTime,
		EndTime:      appt.EndTime,
		Status:       appt.Status,
		CreatedAt:    appt.CreatedAt,
		UpdatedAt:    appt.UpdatedAt,
	}

	// DO NOTHING on the id keeps an idempotent replay from aborting the
	// transaction; the exclusion constraint still raises 23P01 as a backstop
	// for overlaps the pre-check missed.
	res, err := r.tx.NewInsert().Model(&m).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_overlap" {
			return domain.Appointment{}, &store.ConflictError{}
		}
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		var existing domain.Appointment
		err := r.tx.NewSelect().
			Model(&existing).
			Where("id = ?", m.ID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return domain.Appointment{}, err
		}

		if existing.DoctorID != appt.DoctorID ||
			existing.PatientName != appt.PatientName ||
			existing.PatientEmail != appt.PatientEmail ||
			existing.PatientPhone != appt.PatientPhone ||
			!existing.StartTime.Equal(appt.StartTime) ||
			!existing.EndTime.Equal(appt.EndTime) {
			return domain.Appointment{}, store.ErrIdempotencyConflict
		}

		return existing, nil
	}

	appt.ID = m.ID
	appt.Status = m.Status
	appt.CreatedAt = m.CreatedAt
	appt.UpdatedAt = m.UpdatedAt
	return appt, nil
}

func (r doctorTx) ListActiveAppointments(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.tx.NewSelect().
		Model(&rows).
		Where("doctor_id = ?", doctorID).
		Where("status != ?", domain.AppointmentStatusCancelled).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
