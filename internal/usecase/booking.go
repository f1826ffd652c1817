package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"clinic-booking/internal/domain"
	"clinic-booking/internal/i18n"
)

const (
	dateLayout     = "2006-01-02"
	timeSlotLayout = "15:04"
	maxNotesLen    = 500
)

type BookingStore interface {
	GetDoctor(ctx context.Context, id string) (domain.Doctor, error)
	CreateAppointment(ctx context.Context, appt domain.Appointment, notice *domain.Notification) error
	GetAppointment(ctx context.Context, id string) (domain.Appointment, error)
	AppointmentsOn(ctx context.Context, doctorID, date string) ([]domain.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, appt domain.Appointment, status domain.AppointmentStatus, at time.Time, notice *domain.Notification) error
}

type BookingService struct {
	store   BookingStore
	users   UserReader
	catalog *i18n.Catalog
}

type BookingInput struct {
	DoctorID     string
	Date         string
	TimeSlot     string
	PatientName  string
	PatientPhone string
	Notes        string
}

type BookingResult struct {
	ID            string `json:"id"`
	BookingNumber string `json:"bookingNumber"`
}

func NewBookingService(store BookingStore, users UserReader, catalog *i18n.Catalog) (*BookingService, error) {
	if store == nil {
		return nil, errors.New("usecase: booking store must not be nil")
	}
	if users == nil {
		return nil, errors.New("usecase: user reader must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("usecase: catalog must not be nil")
	}
	return &BookingService{store: store, users: users, catalog: catalog}, nil
}

// CreateGuestBooking books a slot for someone without an account.
func (s *BookingService) CreateGuestBooking(ctx context.Context, in BookingInput) (BookingResult, error) {
	in = trimBooking(in)
	if in.PatientName == "" {
		return BookingResult{}, newError(ErrorInvalidInput, "missing_patient_name", nil)
	}
	return s.book(ctx, in, "")
}

// CreateBooking books a slot for a signed-in patient. Name and phone default to
// the patient's profile.
func (s *BookingService) CreateBooking(ctx context.Context, caller Caller, in BookingInput) (BookingResult, error) {
	in = trimBooking(in)
	if e := validateSlot(in); e != nil {
		return BookingResult{}, e
	}
	profile, e := profileOf(ctx, s.users, caller, domain.RolePatient)
	if e != nil {
		return BookingResult{}, e
	}
	if in.PatientName == "" {
		in.PatientName = profile.Name
	}
	if in.PatientPhone == "" {
		in.PatientPhone = profile.Phone
	}
	return s.book(ctx, in, profile.ID)
}

func (s *BookingService) book(ctx context.Context, in BookingInput, patientID string) (BookingResult, error) {
	if e := validateSlot(in); e != nil {
		return BookingResult{}, e
	}
	if len(in.Notes) > maxNotesLen {
		return BookingResult{}, newError(ErrorInvalidInput, "notes_too_long", nil)
	}
	if _, err := s.store.GetDoctor(ctx, in.DoctorID); err != nil {
		return BookingResult{}, storeError("doctor_not_found", err)
	}

	number, err := newBookingNumber()
	if err != nil {
		return BookingResult{}, newError(ErrorInternal, "booking_number_error", err)
	}
	at := now()
	appt := domain.Appointment{
		ID:            newUUID(),
		BookingNumber: number,
		DoctorID:      in.DoctorID,
		PatientID:     patientID,
		PatientName:   in.PatientName,
		PatientPhone:  in.PatientPhone,
		Date:          in.Date,
		TimeSlot:      in.TimeSlot,
		Status:        domain.AppointmentPending,
		Notes:         in.Notes,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	notice := &domain.Notification{
		ID:        newUUID(),
		UserID:    in.DoctorID,
		Type:      domain.NotificationBooking,
		Title:     s.catalog.T("booking.new.title"),
		Body:      s.catalog.T("booking.new.body", number, in.Date, in.TimeSlot),
		RefID:     appt.ID,
		CreatedAt: at,
	}
	if err := s.store.CreateAppointment(ctx, appt, notice); err != nil {
		return BookingResult{}, storeError("slot_taken", err)
	}
	return BookingResult{ID: appt.ID, BookingNumber: number}, nil
}

// BookedSlots lists the taken time slots of a doctor on a date.
func (s *BookingService) BookedSlots(ctx context.Context, doctorID, date string) ([]string, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, newError(ErrorInvalidInput, "missing_doctor_id", nil)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, newError(ErrorInvalidInput, "invalid_date", err)
	}
	appts, err := s.store.AppointmentsOn(ctx, doctorID, date)
	if err != nil {
		return nil, newError(ErrorInternal, "appointments_read_error", err)
	}
	slots := make([]string, 0, len(appts))
	for _, a := range appts {
		if a.Status != domain.AppointmentCancelled {
			slots = append(slots, a.TimeSlot)
		}
	}
	return slots, nil
}

var transitions = map[domain.AppointmentStatus][]domain.AppointmentStatus{
	domain.AppointmentPending:   {domain.AppointmentConfirmed, domain.AppointmentCancelled},
	domain.AppointmentConfirmed: {domain.AppointmentCompleted, domain.AppointmentCancelled},
}

func canTransition(from, to domain.AppointmentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// UpdateStatus moves an appointment forward. The doctor and admins may confirm,
// complete or cancel; the patient may only cancel. The other party is notified in
// the same batch.
func (s *BookingService) UpdateStatus(ctx context.Context, caller Caller, appointmentID string, status domain.AppointmentStatus) (domain.Appointment, error) {
	appointmentID = strings.TrimSpace(appointmentID)
	if appointmentID == "" {
		return domain.Appointment{}, newError(ErrorInvalidInput, "missing_appointment_id", nil)
	}
	switch status {
	case domain.AppointmentConfirmed, domain.AppointmentCompleted, domain.AppointmentCancelled:
	default:
		return domain.Appointment{}, newError(ErrorInvalidInput, "invalid_status", nil)
	}
	profile, e := profileOf(ctx, s.users, caller)
	if e != nil {
		return domain.Appointment{}, e
	}

	appt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, storeError("appointment_not_found", err)
	}

	isDoctor := appt.DoctorID == profile.ID
	isPatient := appt.PatientID != "" && appt.PatientID == profile.ID
	switch {
	case isDoctor, profile.Role == domain.RoleAdmin:
	case isPatient && status == domain.AppointmentCancelled:
	case isPatient:
		return domain.Appointment{}, newError(ErrorForbidden, "patient_may_only_cancel", nil)
	default:
		return domain.Appointment{}, newError(ErrorForbidden, "not_appointment_party", nil)
	}
	if !canTransition(appt.Status, status) {
		return domain.Appointment{}, newError(ErrorConflict, "invalid_transition", nil)
	}

	at := now()
	var notice *domain.Notification
	if isPatient {
		notice = &domain.Notification{
			ID:        newUUID(),
			UserID:    appt.DoctorID,
			Type:      domain.NotificationBookingInfo,
			Title:     s.catalog.T("booking.cancelled.title"),
			Body:      s.catalog.T("booking.cancelled.body", appt.BookingNumber),
			RefID:     appt.ID,
			CreatedAt: at,
		}
	} else if appt.PatientID != "" {
		notice = &domain.Notification{
			ID:        newUUID(),
			UserID:    appt.PatientID,
			Type:      domain.NotificationBookingInfo,
			Title:     s.catalog.T("booking.status.title"),
			Body:      s.catalog.T("booking.status.body", appt.BookingNumber, s.catalog.T("status."+string(status))),
			RefID:     appt.ID,
			CreatedAt: at,
		}
	}
	if err := s.store.UpdateAppointmentStatus(ctx, appt, status, at, notice); err != nil {
		return domain.Appointment{}, storeError("status_changed_concurrently", err)
	}
	appt.Status = status
	appt.UpdatedAt = at
	return appt, nil
}

func trimBooking(in BookingInput) BookingInput {
	in.DoctorID = strings.TrimSpace(in.DoctorID)
	in.Date = strings.TrimSpace(in.Date)
	in.TimeSlot = strings.TrimSpace(in.TimeSlot)
	in.PatientName = strings.TrimSpace(in.PatientName)
	in.PatientPhone = strings.TrimSpace(in.PatientPhone)
	in.Notes = strings.TrimSpace(in.Notes)
	return in
}

func validateSlot(in BookingInput) *Error {
	if in.DoctorID == "" {
		return newError(ErrorInvalidInput, "missing_doctor_id", nil)
	}
	if _, err := time.Parse(dateLayout, in.Date); err != nil {
		return newError(ErrorInvalidInput, "invalid_date", err)
	}
	if _, err := time.Parse(timeSlotLayout, in.TimeSlot); err != nil {
		return newError(ErrorInvalidInput, "invalid_time_slot", err)
	}
	return nil
}
