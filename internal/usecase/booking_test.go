package usecase

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"clinic-booking/internal/domain"
	"clinic-booking/internal/i18n"
)

var bookingNumberPattern = regexp.MustCompile(`^BK[A-Z0-9]{9}$`)

func expectError(t *testing.T, err error, code ErrorCode, reason string) *Error {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
	return usecaseErr
}

func newTestBooking(t *testing.T, store *memStore) *BookingService {
	t.Helper()
	svc, err := NewBookingService(store, store, i18n.MustLoad())
	require.NoError(t, err)
	return svc
}

func guestInput() BookingInput {
	return BookingInput{DoctorID: "D1", Date: "2024-05-10", TimeSlot: "10:00", PatientName: "P"}
}

func TestNewBookingService_ValidatesDependencies(t *testing.T) {
	store := newMemStore()
	_, err := NewBookingService(nil, store, i18n.MustLoad())
	require.Error(t, err)
	_, err = NewBookingService(store, nil, i18n.MustLoad())
	require.Error(t, err)
	_, err = NewBookingService(store, store, nil)
	require.Error(t, err)
}

func TestGuestBooking_EndToEnd(t *testing.T) {
	store := newMemStore()
	store.addUser("D1", domain.RoleDoctor)
	svc := newTestBooking(t, store)
	ctx := context.Background()

	res, err := svc.CreateGuestBooking(ctx, guestInput())
	require.NoError(t, err)
	require.NotEmpty(t, res.ID)
	require.Regexp(t, bookingNumberPattern, res.BookingNumber)

	slots, err := svc.BookedSlots(ctx, "D1", "2024-05-10")
	require.NoError(t, err)
	require.Contains(t, slots, "10:00")

	notices := store.notificationsFor("D1")
	require.Len(t, notices, 1)
	require.Equal(t, domain.NotificationBooking, notices[0].Type)
	require.Equal(t, res.ID, notices[0].RefID)
	require.Contains(t, notices[0].Body, res.BookingNumber)

	appt, err := svc.UpdateStatus(ctx, Caller{UserID: "D1"}, res.ID, domain.AppointmentCancelled)
	require.NoError(t, err)
	require.Equal(t, domain.AppointmentCancelled, appt.Status)

	slots, err = svc.BookedSlots(ctx, "D1", "2024-05-10")
	require.NoError(t, err)
	require.NotContains(t, slots, "10:00")

	again, err := svc.CreateGuestBooking(ctx, guestInput())
	require.NoError(t, err)
	require.NotEqual(t, res.ID, again.ID)
}

func TestGuestBooking_SlotTaken(t *testing.T) {
	store := newMemStore()
	store.addUser("D1", domain.RoleDoctor)
	svc := newTestBooking(t, store)

	_, err := svc.CreateGuestBooking(context.Background(), guestInput())
	require.NoError(t, err)
	_, err = svc.CreateGuestBooking(context.Background(), guestInput())
	expectError(t, err, ErrorConflict, "slot_taken")
}

func TestGuestBooking_ValidationBeforeBackend(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*BookingInput)
		reason string
	}{
		{name: "no name", mutate: func(in *BookingInput) { in.PatientName = " " }, reason: "missing_patient_name"},
		{name: "no doctor", mutate: func(in *BookingInput) { in.DoctorID = "" }, reason: "missing_doctor_id"},
		{name: "bad date", mutate: func(in *BookingInput) { in.Date = "10/05/2024" }, reason: "invalid_date"},
		{name: "bad slot", mutate: func(in *BookingInput) { in.TimeSlot = "25:00" }, reason: "invalid_time_slot"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			svc := newTestBooking(t, store)
			in := guestInput()
			tc.mutate(&in)

			_, err := svc.CreateGuestBooking(context.Background(), in)
			expectError(t, err, ErrorInvalidInput, tc.reason)
			require.Zero(t, store.calls)
		})
	}
}

func TestGuestBooking_UnknownDoctor(t *testing.T) {
	svc := newTestBooking(t, newMemStore())
	_, err := svc.CreateGuestBooking(context.Background(), guestInput())
	expectError(t, err, ErrorNotFound, "doctor_not_found")
}

func TestGuestBooking_StoreFailure(t *testing.T) {
	store := newMemStore()
	store.addUser("D1", domain.RoleDoctor)
	store.fail["CreateAppointment"] = errors.New("throttled")
	svc := newTestBooking(t, store)

	_, err := svc.CreateGuestBooking(context.Background(), guestInput())
	expectError(t, err, ErrorInternal, "store_error")
}

func TestCreateBooking_UsesPatientProfile(t *testing.T) {
	store := newMemStore()
	store.addUser("D1", domain.RoleDoctor)
	store.addUser("p1", domain.RolePatient)
	svc := newTestBooking(t, store)

	in := guestInput()
	in.PatientName = ""
	res, err := svc.CreateBooking(context.Background(), Caller{UserID: "p1"}, in)
	require.NoError(t, err)

	appt := store.appointments[res.ID]
	require.Equal(t, "p1", appt.PatientID)
	require.Equal(t, "User p1", appt.PatientName)
	require.Equal(t, "0100p1", appt.PatientPhone)
}

func TestCreateBooking_RequiresPatient(t *testing.T) {
	store := newMemStore()
	store.addUser("D1", domain.RoleDoctor)
	svc := newTestBooking(t, store)

	_, err := svc.CreateBooking(context.Background(), Caller{}, guestInput())
	expectError(t, err, ErrorUnauthenticated, "unauthenticated")

	_, err = svc.CreateBooking(context.Background(), Caller{UserID: "D1"}, guestInput())
	expectError(t, err, ErrorForbidden, "role_required")
}

func TestUpdateStatus_Permissions(t *testing.T) {
	store := newMemStore()
	store.addUser("D1", domain.RoleDoctor)
	store.addUser("p1", domain.RolePatient)
	store.addUser("p2", domain.RolePatient)
	svc := newTestBooking(t, store)
	ctx := context.Background()

	res, err := svc.CreateBooking(ctx, Caller{UserID: "p1"}, guestInput())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, Caller{UserID: "p1"}, res.ID, domain.AppointmentConfirmed)
	expectError(t, err, ErrorForbidden, "patient_may_only_cancel")

	_, err = svc.UpdateStatus(ctx, Caller{UserID: "p2"}, res.ID, domain.AppointmentCancelled)
	expectError(t, err, ErrorForbidden, "not_appointment_party")

	_, err = svc.UpdateStatus(ctx, Caller{UserID: "D1"}, res.ID, domain.AppointmentCompleted)
	expectError(t, err, ErrorConflict, "invalid_transition")

	appt, err := svc.UpdateStatus(ctx, Caller{UserID: "D1"}, res.ID, domain.AppointmentConfirmed)
	require.NoError(t, err)
	require.Equal(t, domain.AppointmentConfirmed, appt.Status)

	patientNotices := store.notificationsFor("p1")
	require.Len(t, patientNotices, 1)
	require.Equal(t, domain.NotificationBookingInfo, patientNotices[0].Type)
	require.Contains(t, patientNotices[0].Body, "مؤكد")

	_, err = svc.UpdateStatus(ctx, Caller{UserID: "p1"}, res.ID, domain.AppointmentCancelled)
	require.NoError(t, err)
	require.Len(t, store.notificationsFor("D1"), 2)

	_, err = svc.UpdateStatus(ctx, Caller{UserID: "D1"}, res.ID, domain.AppointmentConfirmed)
	expectError(t, err, ErrorConflict, "invalid_transition")
}

func TestUpdateStatus_Validation(t *testing.T) {
	store := newMemStore()
	svc := newTestBooking(t, store)

	_, err := svc.UpdateStatus(context.Background(), Caller{UserID: "D1"}, "a1", domain.AppointmentPending)
	expectError(t, err, ErrorInvalidInput, "invalid_status")
	_, err = svc.UpdateStatus(context.Background(), Caller{UserID: "D1"}, " ", domain.AppointmentConfirmed)
	expectError(t, err, ErrorInvalidInput, "missing_appointment_id")
	require.Zero(t, store.calls)
}

func TestBookedSlots_Validation(t *testing.T) {
	svc := newTestBooking(t, newMemStore())
	_, err := svc.BookedSlots(context.Background(), "", "2024-05-10")
	expectError(t, err, ErrorInvalidInput, "missing_doctor_id")
	_, err = svc.BookedSlots(context.Background(), "D1", "tomorrow")
	expectError(t, err, ErrorInvalidInput, "invalid_date")
}

func TestNewBookingNumber(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		n, err := newBookingNumber()
		require.NoError(t, err)
		require.Regexp(t, bookingNumberPattern, n)
		seen[n] = true
	}
	require.Len(t, seen, 1000)
}
