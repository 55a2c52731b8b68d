package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"clinicbook/backend/internal/domain"
	"clinicbook/backend/internal/service/booking"
	"clinicbook/backend/internal/store"
)

// SlotLimits bounds the slot_minutes query parameter. Requests outside
// [Min, Max] are rejected before they reach the engine.
type SlotLimits struct {
	Default int
	Min     int
	Max     int
}

type bookingService interface {
	FreeSlots(ctx context.Context, doctorID string, windowStart, windowEnd time.Time, slotMinutes int) ([]domain.Slot, error)
	Book(ctx context.Context, in booking.BookInput) (domain.Appointment, error)
	Cancel(ctx context.Context, appointmentID uuid.UUID) error
	Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	List(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
}

type BookingServer struct {
	svc    bookingService
	log    *slog.Logger
	limits SlotLimits
}

func NewBookingServer(svc bookingService, log *slog.Logger, limits SlotLimits) *BookingServer {
	if log == nil {
		log = slog.Default()
	}
	if limits.Default <= 0 {
		limits = SlotLimits{Default: 30, Min: 15, Max: 120}
	}
	return &BookingServer{
		svc:    svc,
		log:    log.With(slog.String("component", "http.booking")),
		limits: limits,
	}
}

func (s *BookingServer) RegisterRoutes(g *echo.Group) {
	g.GET("/doctors/:id/availability", s.Availability)
	g.GET("/doctors/:id/appointments", s.ListAppointments)
	g.POST("/appointments", s.BookAppointment)
	g.GET("/appointments/:id", s.GetAppointment)
	g.POST("/appointments/:id/cancel", s.CancelAppointment)
}

type slotPayload struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type availabilityResponse struct {
	DoctorID    string        `json:"doctorId"`
	SlotMinutes int           `json:"slotMinutes"`
	Slots       []slotPayload `json:"slots"`
}

func (s *BookingServer) Availability(c echo.Context) error {
	log := s.log.With(slog.String("route", "Availability"))
	doctorID := c.Param("id")

	start, end, err := parseWindow(c.QueryParam("start"), c.QueryParam("end"))
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err), slog.String("doctor_id", doctorID))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	slotMinutes := s.limits.Default
	if raw := strings.TrimSpace(c.QueryParam("slot_minutes")); raw != "" {
		slotMinutes, err = strconv.Atoi(raw)
		if err != nil {
			log.Warn("invalid request", slog.String("reason", "bad_slot_minutes"), slog.String("doctor_id", doctorID))
			return echo.NewHTTPError(http.StatusBadRequest, "slot_minutes must be an integer")
		}
	}
	if slotMinutes < s.limits.Min || slotMinutes > s.limits.Max {
		log.Warn("invalid request", slog.String("reason", "slot_minutes_out_of_bounds"), slog.Int("slot_minutes", slotMinutes))
		return echo.NewHTTPError(http.StatusBadRequest,
			"slot_minutes must be between "+strconv.Itoa(s.limits.Min)+" and "+strconv.Itoa(s.limits.Max))
	}

	slots, err := s.svc.FreeSlots(c.Request().Context(), doctorID, start, end, slotMinutes)
	if err != nil {
		var vErr *booking.ValidationError
		if errors.As(err, &vErr) {
			log.Warn("invalid request", slog.Any("err", err), slog.String("doctor_id", doctorID))
			return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
		}
		log.Error("availability lookup failed", slog.Any("err", err), slog.String("doctor_id", doctorID))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	out := make([]slotPayload, 0, len(slots))
	for _, sl := range slots {
		out = append(out, slotPayload{Start: sl.Start, End: sl.End})
	}

	log.Debug(
		"availability computed",
		slog.String("doctor_id", doctorID),
		slog.Int("count", len(out)),
		slog.Time("window_start", start),
		slog.Time("window_end", end),
	)

	return c.JSON(http.StatusOK, availabilityResponse{
		DoctorID:    doctorID,
		SlotMinutes: slotMinutes,
		Slots:       out,
	})
}

type patientPayload struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type bookRequest struct {
	DoctorID        string         `json:"doctorId"`
	StartUTC        time.Time      `json:"startUtc"`
	EndUTC          time.Time      `json:"endUtc"`
	DurationMinutes int            `json:"durationMinutes"`
	Patient         patientPayload `json:"patient"`
}

type appointmentPayload struct {
	ID        string         `json:"id"`
	DoctorID  string         `json:"doctorId"`
	Patient   patientPayload `json:"patient"`
	StartUTC  time.Time      `json:"startUtc"`
	EndUTC    time.Time      `json:"endUtc"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

type conflictResponse struct {
	Message  string       `json:"message"`
	Conflict *slotPayload `json:"conflict,omitempty"`
}

func (s *BookingServer) BookAppointment(c echo.Context) error {
	log := s.log.With(slog.String("route", "BookAppointment"))

	var req bookRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_body"))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.StartUTC.IsZero() {
		log.Warn("invalid request", slog.String("reason", "missing_start"), slog.String("doctor_id", req.DoctorID))
		return echo.NewHTTPError(http.StatusBadRequest, "startUtc is required")
	}

	appt, err := s.svc.Book(c.Request().Context(), booking.BookInput{
		DoctorID:        req.DoctorID,
		PatientName:     req.Patient.Name,
		PatientEmail:    req.Patient.Email,
		PatientPhone:    req.Patient.Phone,
		StartTime:       req.StartUTC,
		EndTime:         req.EndUTC,
		DurationMinutes: req.DurationMinutes,
		IdempotencyKey:  idempotencyKey(c),
	})
	if err != nil {
		var cErr *store.ConflictError
		if errors.As(err, &cErr) {
			log.Info(
				"booking conflict",
				slog.String("doctor_id", req.DoctorID),
				slog.Time("start_time", req.StartUTC),
				slog.String("conflicting_id", cErr.AppointmentID.String()),
			)
			resp := conflictResponse{Message: "That time is already booked. Pick a different slot."}
			if cErr.AppointmentID != uuid.Nil {
				resp.Conflict = &slotPayload{Start: cErr.StartTime, End: cErr.EndTime}
			}
			return c.JSON(http.StatusConflict, resp)
		}
		if errors.Is(err, store.ErrIdempotencyConflict) {
			log.Info("booking idempotency conflict", slog.String("doctor_id", req.DoctorID))
			return echo.NewHTTPError(http.StatusConflict, "This request key was already used for a different appointment. Try again.")
		}
		var vErr *booking.ValidationError
		if errors.As(err, &vErr) {
			log.Warn("invalid request", slog.Any("err", err), slog.String("doctor_id", req.DoctorID))
			return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
		}
		log.Error("booking failed", slog.Any("err", err), slog.String("doctor_id", req.DoctorID))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	log.Info(
		"appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("doctor_id", appt.DoctorID),
		slog.Time("start_time", appt.StartTime),
		slog.Time("end_time", appt.EndTime),
	)

	return c.JSON(http.StatusCreated, toAppointmentPayload(appt))
}

func idempotencyKey(c echo.Context) string {
	key := c.Request().Header.Get("Idempotency-Key")
	if key == "" {
		key = c.Request().Header.Get("X-Idempotency-Key")
	}
	return strings.TrimSpace(key)
}

func (s *BookingServer) CancelAppointment(c echo.Context) error {
	log := s.log.With(slog.String("route", "CancelAppointment"))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return echo.NewHTTPError(http.StatusBadRequest, "appointment id must be a UUID")
	}

	if err := s.svc.Cancel(c.Request().Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("appointment not found", slog.String("appointment_id", id.String()))
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		var vErr *booking.ValidationError
		if errors.As(err, &vErr) {
			log.Warn("invalid request", slog.Any("err", err), slog.String("appointment_id", id.String()))
			return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
		}
		log.Error("cancel failed", slog.Any("err", err), slog.String("appointment_id", id.String()))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	log.Info("appointment cancelled", slog.String("appointment_id", id.String()))
	return c.JSON(http.StatusOK, map[string]string{"status": string(domain.AppointmentStatusCancelled)})
}

func (s *BookingServer) GetAppointment(c echo.Context) error {
	log := s.log.With(slog.String("route", "GetAppointment"))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return echo.NewHTTPError(http.StatusBadRequest, "appointment id must be a UUID")
	}

	appt, err := s.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		log.Error("get failed", slog.Any("err", err), slog.String("appointment_id", id.String()))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, toAppointmentPayload(appt))
}

func (s *BookingServer) ListAppointments(c echo.Context) error {
	log := s.log.With(slog.String("route", "ListAppointments"))
	doctorID := c.Param("id")

	start, end, err := parseWindow(c.QueryParam("start"), c.QueryParam("end"))
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err), slog.String("doctor_id", doctorID))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	appts, err := s.svc.List(c.Request().Context(), doctorID, start, end)
	if err != nil {
		var vErr *booking.ValidationError
		if errors.As(err, &vErr) {
			log.Warn("invalid request", slog.Any("err", err), slog.String("doctor_id", doctorID))
			return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
		}
		log.Error("appointments list failed", slog.Any("err", err), slog.String("doctor_id", doctorID))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	out := make([]appointmentPayload, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentPayload(a))
	}

	log.Debug(
		"appointments listed",
		slog.String("doctor_id", doctorID),
		slog.Int("count", len(out)),
	)

	return c.JSON(http.StatusOK, out)
}

func parseWindow(startRaw, endRaw string) (time.Time, time.Time, error) {
	if strings.TrimSpace(startRaw) == "" || strings.TrimSpace(endRaw) == "" {
		return time.Time{}, time.Time{}, errors.New("start and end query parameters are required")
	}
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start must be an RFC 3339 timestamp")
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("end must be an RFC 3339 timestamp")
	}
	return start.UTC(), end.UTC(), nil
}

func toAppointmentPayload(a domain.Appointment) appointmentPayload {
	return appointmentPayload{
		ID:       a.ID.String(),
		DoctorID: a.DoctorID,
		Patient: patientPayload{
			Name:  a.PatientName,
			Email: a.PatientEmail,
			Phone: a.PatientPhone,
		},
		StartUTC:  a.StartTime.UTC(),
		EndUTC:    a.EndTime.UTC(),
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt.UTC(),
	}
}
