package handler

import (
	"context"
	"net/http"

	"clinic-booking/internal/domain"
	"clinic-booking/internal/integrations/mediastore"
	"clinic-booking/internal/retention"
	"clinic-booking/internal/usecase"
)

type BookingAPI interface {
	CreateGuestBooking(ctx context.Context, in usecase.BookingInput) (usecase.BookingResult, error)
	CreateBooking(ctx context.Context, caller usecase.Caller, in usecase.BookingInput) (usecase.BookingResult, error)
	BookedSlots(ctx context.Context, doctorID, date string) ([]string, error)
	UpdateStatus(ctx context.Context, caller usecase.Caller, appointmentID string, status domain.AppointmentStatus) (domain.Appointment, error)
}

type ChatAPI interface {
	StartThread(ctx context.Context, caller usecase.Caller, otherID string) (domain.ChatThread, error)
	RespondThread(ctx context.Context, caller usecase.Caller, threadID string, accept bool) (domain.ChatThread, error)
	SendMessage(ctx context.Context, caller usecase.Caller, in usecase.SendMessageInput) (domain.Message, error)
	MarkRead(ctx context.Context, caller usecase.Caller, threadID string) (int, error)
	HideThread(ctx context.Context, caller usecase.Caller, threadID string) error
	ImageUploadURL(ctx context.Context, caller usecase.Caller, threadID, contentType string) (mediastore.Upload, error)
	ImageURL(ctx context.Context, caller usecase.Caller, threadID, ref string) (string, error)
}

type DoctorAPI interface {
	SubmitRequest(ctx context.Context, in usecase.DoctorRequestInput) (domain.DoctorRequest, error)
	UpdateProfile(ctx context.Context, caller usecase.Caller, upd domain.DoctorProfileUpdate) error
	ListDoctors(ctx context.Context, specialty string) ([]domain.Doctor, error)
	GetDoctor(ctx context.Context, id string) (domain.Doctor, error)
}

type AdminAPI interface {
	DeleteAccount(ctx context.Context, caller usecase.Caller, targetID string) (usecase.DeleteAccountResult, error)
	ApproveDoctorRequest(ctx context.Context, caller usecase.Caller, requestID string) (usecase.Approval, error)
	RejectDoctorRequest(ctx context.Context, caller usecase.Caller, requestID string) error
	ListDoctorRequests(ctx context.Context, caller usecase.Caller, status domain.RequestStatus) ([]domain.DoctorRequest, error)
	RunRetentionSweep(ctx context.Context, caller usecase.Caller) (retention.Report, error)
}

type FeaturedAPI interface {
	List(ctx context.Context) ([]domain.FeaturedEntry, error)
	Add(ctx context.Context, caller usecase.Caller, doctorID string) (domain.FeaturedEntry, error)
	MoveUp(ctx context.Context, caller usecase.Caller, doctorID string) ([]domain.FeaturedEntry, error)
	MoveDown(ctx context.Context, caller usecase.Caller, doctorID string) ([]domain.FeaturedEntry, error)
	Remove(ctx context.Context, caller usecase.Caller, doctorID string) error
	Compact(ctx context.Context, caller usecase.Caller) ([]domain.FeaturedEntry, error)
}

type NotificationAPI interface {
	MarkRead(ctx context.Context, caller usecase.Caller, id string) error
}

var (
	_ BookingAPI      = (*usecase.BookingService)(nil)
	_ ChatAPI         = (*usecase.ChatService)(nil)
	_ DoctorAPI       = (*usecase.DoctorService)(nil)
	_ AdminAPI        = (*usecase.AdminService)(nil)
	_ FeaturedAPI     = (*usecase.FeaturedService)(nil)
	_ NotificationAPI = (*usecase.NotificationService)(nil)
)

type request struct {
	caller usecase.Caller
	body   []byte
	path   map[string]string
	query  map[string]string
}

type routeFunc func(ctx context.Context, r request) (int, any, error)

type okResponse struct {
	Success bool `json:"success"`
}

type bookingRequest struct {
	DoctorID     string `json:"doctorId" validate:"required"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot     string `json:"timeSlot" validate:"required,datetime=15:04"`
	PatientName  string `json:"patientName" validate:"max=100"`
	PatientPhone string `json:"patientPhone" validate:"max=30"`
	Notes        string `json:"notes" validate:"max=500"`
}

func (b bookingRequest) input() usecase.BookingInput {
	return usecase.BookingInput{
		DoctorID:     b.DoctorID,
		Date:         b.Date,
		TimeSlot:     b.TimeSlot,
		PatientName:  b.PatientName,
		PatientPhone: b.PatientPhone,
		Notes:        b.Notes,
	}
}

type statusRequest struct {
	Status domain.AppointmentStatus `json:"status" validate:"required,oneof=pending confirmed completed cancelled"`
}

type startThreadRequest struct {
	OtherID string `json:"otherId" validate:"required"`
}

type respondRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

type messageRequest struct {
	Text     string `json:"text" validate:"required_without=ImageRef"`
	ImageRef string `json:"imageRef"`
}

type imageUploadRequest struct {
	ContentType string `json:"contentType" validate:"required"`
}

type doctorRequestBody struct {
	Name      string `json:"name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"max=30"`
	Specialty string `json:"specialty" validate:"required,max=100"`
}

type deleteAccountRequest struct {
	UserID string `json:"userId"`
}

type featuredRequest struct {
	DoctorID string `json:"doctorId" validate:"required"`
}

func (h *Handler) routeTable() map[string]routeFunc {
	return map[string]routeFunc{
		"POST /bookings/guest":                     h.createGuestBooking,
		"POST /bookings":                           h.createBooking,
		"GET /doctors/{doctorId}/slots":            h.bookedSlots,
		"PATCH /appointments/{appointmentId}":      h.updateAppointmentStatus,
		"POST /threads":                            h.startThread,
		"POST /threads/{threadId}/respond":         h.respondThread,
		"POST /threads/{threadId}/messages":        h.sendMessage,
		"POST /threads/{threadId}/read":            h.markThreadRead,
		"DELETE /threads/{threadId}":               h.hideThread,
		"POST /threads/{threadId}/images":          h.imageUploadURL,
		"GET /threads/{threadId}/images":           h.imageURL,
		"GET /doctors":                             h.listDoctors,
		"GET /doctors/{doctorId}":                  h.getDoctor,
		"PATCH /doctors/me":                        h.updateDoctorProfile,
		"POST /doctor-requests":                    h.submitDoctorRequest,
		"GET /admin/doctor-requests":               h.listDoctorRequests,
		"POST /admin/doctor-requests/{id}/approve": h.approveDoctorRequest,
		"POST /admin/doctor-requests/{id}/reject":  h.rejectDoctorRequest,
		"POST /admin/delete-account":               h.deleteAccount,
		"POST /admin/retention/sweep":              h.runRetentionSweep,
		"GET /featured":                            h.listFeatured,
		"POST /featured":                           h.addFeatured,
		"POST /featured/{doctorId}/up":             h.moveFeaturedUp,
		"POST /featured/{doctorId}/down":           h.moveFeaturedDown,
		"DELETE /featured/{doctorId}":              h.removeFeatured,
		"POST /featured/compact":                   h.compactFeatured,
		"POST /notifications/{id}/read":            h.markNotificationRead,
	}
}

func (h *Handler) createGuestBooking(ctx context.Context, r request) (int, any, error) {
	var body bookingRequest
	if err := h.decode(r.body, &body); err != nil {
		return 0, nil, err
	}
	out, err := h.svc.Booking.CreateGuestBooking(ctx, body.input())
	return http.StatusCreated, out, err
}

func (h *Handler) createBooking(ctx context.Context, r request) (int, any, error) {
	var body bookingRequest
	if err := h.decode(r.body, &body); err != nil {
		return 0, nil, err
	}
	out, err := h.svc.Booking.CreateBooking(ctx, r.caller, body.input())
	return http.StatusCreated, out, err
}

func (h *Handler) bookedSlots(ctx context.Context, r request) (int, any, error) {
	slots, err := h.svc.Booking.BookedSlots(ctx, r.path["doctorId"], r.query["date"])
	return http.StatusOK, map[string]any{"slots": slots}, err
}

func (h *Handler) updateAppointmentStatus(ctx context.Context, r request) (int, any, error) {
	var body statusRequest
	if err := h.decode(r.body, &body); err != nil {
		return 0, nil, err
	}
	out, err := h.svc.Booking.UpdateStatus(ctx, r.caller, r.path["appointmentId"], body.Status)
	return http.StatusOK, out, err
}

func (h *Handler) startThread(ctx context.Context, r request) (int, any, error) {
	var body startThreadRequest
	if err := h.decode(r.body, &body); err != nil {
		return 0, nil, err
	}
	out, err := h.svc.Chat.StartThread(ctx, r.caller, body.OtherID)
	return http.StatusOK, out, err
}

func (h *Handler) respondThread(ctx context.Context, r request) (int, any, error) {
	var body respondRequest
	if err := h.decode(r.body, &body); err != nil {
		return 0, nil, err
	}
	out, err := h.svc.Chat.RespondThread(ctx, r.caller, r.path["threadId"], *body.Accept)
	return http.StatusOK, out, err
}

func (h *Handler) sendMessage(ctx context.Context, r request) (int, any, error) {
	var body messageRequest
	if err := h.decode(r.body, &body); err != nil {
		return 0, nil, err
	}
	out, err := h.svc.Chat.SendMessage(ctx, r.caller, usecase.SendMessageInput{
		ThreadID: r.path["threadId"],
		Text:     body.Text,
		ImageRef: body.ImageRef,
	})
	return http.StatusCreated, out, err
}

func (h *Handler) markThreadRead(ctx context.Context, r request) (int, any, error) {
	n, err := h.svc.Chat.MarkRead(ctx, r.caller, r.path["threadId"])
	return http.StatusOK, map[string]int{"marked": n}, err
}

func (h *Handler) hideThread(ctx context.Context, r request) (int, any, error) {
	err := h.svc.Chat.HideThread(ctx, r.caller, r.path["threadId"])
	return http.StatusOK, okResponse{Success: true}, err
}

func (h *Handler) imageUploadURL(ctx context.Context, r request) (int, any, error) {
	var body imageUploadRequest
	if err := h.decode(r.body, &body); err != nil {
		return 0, nil, err
	}
	out, err := h.svc.Chat.ImageUploadURL(ctx, r.caller, r.path["threadId"], body.ContentType)
	return http.StatusOK, out, err
}

func (h *Handler) imageURL(ctx context.Context, r request) (int, any, error) {
	url, err := h.svc.Chat.ImageURL(ctx, r.caller, r.path["threadId"], r.query["ref"])
	return http.StatusOK, map[string]string{"url": url}, err
}

func (h *Handler) listDoctors(ctx context.Context, r request) (int, any, error) {
	out, err := h.svc.Doctors.ListDoctors(ctx, r.query["specialty"])
	return http.StatusOK, out, err
}

func (h *Handler) getDoctor(ctx context.Context, r request) (int, any, error) {
	out, err := h.svc.Doctors.GetDoctor(ctx, r.path["doctorId"])
	return http.StatusOK, out, err
}

func (h *Handler) updateDoctorProfile(ctx context.Context, r request) (int, any, error) {
	var body domain.DoctorProfileUpdate
	if err := h.decode(r.body, &body); err != nil {
		return 0, nil, err
	}
	err := h.svc.Doctors.UpdateProfile(ctx, r.caller, body)
	return http.StatusOK, okResponse{Success: true}, err
}

func (h *Handler) submitDoctorRequest(ctx context.Context, r request) (int, any, error) {
	var body doctorRequestBody
	if err := h.decode(r.body, &body); err != nil {
		return 0, nil, err
	}
	out, err := h.svc.Doctors.SubmitRequest(ctx, usecase.DoctorRequestInput{
		Name:      body.Name,
		Email:     body.Email,
		Phone:     body.Phone,
		Specialty: body.Specialty,
	})
	return http.StatusCreated, out, err
}

func (h *Handler) listDoctorRequests(ctx context.Context, r request) (int, any, error) {
	out, err := h.svc.Admin.ListDoctorRequests(ctx, r.caller, domain.RequestStatus(r.query["status"]))
	return http.StatusOK, out, err
}

func (h *Handler) approveDoctorRequest(ctx context.Context, r request) (int, any, error) {
	out, err := h.svc.Admin.ApproveDoctorRequest(ctx, r.caller, r.path["id"])
	return http.StatusOK, out, err
}

func (h *Handler) rejectDoctorRequest(ctx context.Context, r request) (int, any, error) {
	err := h.svc.Admin.RejectDoctorRequest(ctx, r.caller, r.path["id"])
	return http.StatusOK, okResponse{Success: true}, err
}

// deleteAccount leaves the empty-id check to the service so the caller gets its
// localized message.
func (h *Handler) deleteAccount(ctx context.Context, r request) (int, any, error) {
	var body deleteAccountRequest
	if err := h.decode(r.body, &body); err != nil {
		return 0, nil, err
	}
	out, err := h.svc.Admin.DeleteAccount(ctx, r.caller, body.UserID)
	return http.StatusOK, out, err
}

func (h *Handler) runRetentionSweep(ctx context.Context, r request) (int, any, error) {
	out, err := h.svc.Admin.RunRetentionSweep(ctx, r.caller)
	return http.StatusOK, out, err
}

func (h *Handler) listFeatured(ctx context.Context, _ request) (int, any, error) {
	out, err := h.svc.Featured.List(ctx)
	return http.StatusOK, out, err
}

func (h *Handler) addFeatured(ctx context.Context, r request) (int, any, error) {
	var body featuredRequest
	if err := h.decode(r.body, &body); err != nil {
		return 0, nil, err
	}
	out, err := h.svc.Featured.Add(ctx, r.caller, body.DoctorID)
	return http.StatusCreated, out, err
}

func (h *Handler) moveFeaturedUp(ctx context.Context, r request) (int, any, error) {
	out, err := h.svc.Featured.MoveUp(ctx, r.caller, r.path["doctorId"])
	return http.StatusOK, out, err
}

func (h *Handler) moveFeaturedDown(ctx context.Context, r request) (int, any, error) {
	out, err := h.svc.Featured.MoveDown(ctx, r.caller, r.path["doctorId"])
	return http.StatusOK, out, err
}

func (h *Handler) removeFeatured(ctx context.Context, r request) (int, any, error) {
	err := h.svc.Featured.Remove(ctx, r.caller, r.path["doctorId"])
	return http.StatusOK, okResponse{Success: true}, err
}

func (h *Handler) compactFeatured(ctx context.Context, r request) (int, any, error) {
	out, err := h.svc.Featured.Compact(ctx, r.caller)
	return http.StatusOK, out, err
}

func (h *Handler) markNotificationRead(ctx context.Context, r request) (int, any, error) {
	err := h.svc.Notifications.MarkRead(ctx, r.caller, r.path["id"])
	return http.StatusOK, okResponse{Success: true}, err
}
