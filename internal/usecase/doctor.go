package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"clinic-booking/internal/domain"
)

type DoctorStore interface {
	CreateDoctorRequest(ctx context.Context, req domain.DoctorRequest) error
	GetDoctor(ctx context.Context, id string) (domain.Doctor, error)
	ListDoctors(ctx context.Context, specialty string) ([]domain.Doctor, error)
	UpdateDoctorProfile(ctx context.Context, id string, upd domain.DoctorProfileUpdate, at time.Time) error
}

type DoctorService struct {
	store DoctorStore
	users UserReader
}

type DoctorRequestInput struct {
	Name      string
	Email     string
	Phone     string
	Specialty string
}

func NewDoctorService(store DoctorStore, users UserReader) (*DoctorService, error) {
	if store == nil {
		return nil, errors.New("usecase: doctor store must not be nil")
	}
	if users == nil {
		return nil, errors.New("usecase: user reader must not be nil")
	}
	return &DoctorService{store: store, users: users}, nil
}

// SubmitRequest records an application to join as a doctor. No account is
// created until an admin approves it.
func (s *DoctorService) SubmitRequest(ctx context.Context, in DoctorRequestInput) (domain.DoctorRequest, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Specialty = strings.TrimSpace(in.Specialty)
	if in.Name == "" {
		return domain.DoctorRequest{}, newError(ErrorInvalidInput, "missing_name", nil)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return domain.DoctorRequest{}, newError(ErrorInvalidInput, "invalid_email", err)
	}
	if in.Specialty == "" {
		return domain.DoctorRequest{}, newError(ErrorInvalidInput, "missing_specialty", nil)
	}

	req := domain.DoctorRequest{
		ID:        newUUID(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Specialty: in.Specialty,
		Status:    domain.RequestPending,
		CreatedAt: now(),
	}
	if err := s.store.CreateDoctorRequest(ctx, req); err != nil {
		return domain.DoctorRequest{}, storeError("request_exists", err)
	}
	return req, nil
}

// UpdateProfile changes the caller's own doctor profile.
func (s *DoctorService) UpdateProfile(ctx context.Context, caller Caller, upd domain.DoctorProfileUpdate) error {
	if upd.Empty() {
		return newError(ErrorInvalidInput, "empty_update", nil)
	}
	if upd.Fee != nil && *upd.Fee < 0 {
		return newError(ErrorInvalidInput, "negative_fee", nil)
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return newError(ErrorInvalidInput, "missing_name", nil)
	}
	profile, e := profileOf(ctx, s.users, caller, domain.RoleDoctor)
	if e != nil {
		return e
	}
	if err := s.store.UpdateDoctorProfile(ctx, profile.ID, upd, now()); err != nil {
		return storeError("doctor_not_found", err)
	}
	return nil
}

func (s *DoctorService) ListDoctors(ctx context.Context, specialty string) ([]domain.Doctor, error) {
	doctors, err := s.store.ListDoctors(ctx, strings.TrimSpace(specialty))
	if err != nil {
		return nil, newError(ErrorInternal, "doctors_read_error", err)
	}
	return doctors, nil
}

func (s *DoctorService) GetDoctor(ctx context.Context, id string) (domain.Doctor, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Doctor{}, newError(ErrorInvalidInput, "missing_doctor_id", nil)
	}
	d, err := s.store.GetDoctor(ctx, id)
	if err != nil {
		return domain.Doctor{}, storeError("doctor_not_found", err)
	}
	return d, nil
}
