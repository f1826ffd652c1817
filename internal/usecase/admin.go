package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clinic-booking/internal/domain"
	"clinic-booking/internal/i18n"
	"clinic-booking/internal/identity"
	"clinic-booking/internal/provision"
	"clinic-booking/internal/repository"
	"clinic-booking/internal/retention"
)

type AdminStore interface {
	GetUser(ctx context.Context, userID string) (domain.UserProfile, error)
	DeleteUser(ctx context.Context, userID string) error
	GetDoctorRequest(ctx context.Context, id string) (domain.DoctorRequest, error)
	ListDoctorRequests(ctx context.Context, status domain.RequestStatus) ([]domain.DoctorRequest, error)
	ApproveDoctorRequest(ctx context.Context, req domain.DoctorRequest, user domain.UserProfile, doctor domain.Doctor) error
	RejectDoctorRequest(ctx context.Context, id, reviewer string, at time.Time) error
}

// AccountDirectory deletes login accounts. Deleting an absent account succeeds.
type AccountDirectory interface {
	DeleteUser(ctx context.Context, userID string) error
}

type AccountProvisioner interface {
	Provision(ctx context.Context, email string, persist provision.PersistFunc) (domain.ProvisionedAccount, error)
}

type RetentionRunner interface {
	Run(ctx context.Context, trigger retention.Trigger) retention.Report
}

type AdminService struct {
	store       AdminStore
	directory   AccountDirectory
	provisioner AccountProvisioner
	sweeper     RetentionRunner
	catalog     *i18n.Catalog
	log         zerolog.Logger
}

type DeleteAccountResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Approval is returned once to the approving admin; the secret is not stored.
type Approval struct {
	Request domain.DoctorRequest      `json:"request"`
	Account domain.ProvisionedAccount `json:"account"`
}

func NewAdminService(store AdminStore, directory AccountDirectory, provisioner AccountProvisioner, sweeper RetentionRunner, catalog *i18n.Catalog, log zerolog.Logger) (*AdminService, error) {
	if store == nil {
		return nil, errors.New("usecase: admin store must not be nil")
	}
	if directory == nil {
		return nil, errors.New("usecase: account directory must not be nil")
	}
	if provisioner == nil {
		return nil, errors.New("usecase: provisioner must not be nil")
	}
	if sweeper == nil {
		return nil, errors.New("usecase: retention runner must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("usecase: catalog must not be nil")
	}
	return &AdminService{
		store:       store,
		directory:   directory,
		provisioner: provisioner,
		sweeper:     sweeper,
		catalog:     catalog,
		log:         log.With().Str("component", "admin").Logger(),
	}, nil
}

// DeleteAccount removes another user's login account and profile. Input problems
// and self-targeting are rejected before anything is read.
func (s *AdminService) DeleteAccount(ctx context.Context, caller Caller, targetID string) (DeleteAccountResult, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return DeleteAccountResult{}, newError(ErrorInvalidInput, "missing_user_id", nil).
			withMessage(s.catalog.T("account.missing_id"))
	}
	if caller.Anonymous() {
		return DeleteAccountResult{}, newError(ErrorUnauthenticated, "unauthenticated", nil).
			withMessage(s.catalog.T("account.unauthenticated"))
	}
	if targetID == caller.UserID {
		return DeleteAccountResult{}, newError(ErrorInvalidInput, "self_delete", nil).
			withMessage(s.catalog.T("account.self_delete"))
	}
	if _, e := profileOf(ctx, s.store, caller, domain.RoleAdmin); e != nil {
		return DeleteAccountResult{}, e.withMessage(s.catalog.T("account.forbidden"))
	}

	_, err := s.store.GetUser(ctx, targetID)
	absent := errors.Is(err, repository.ErrNotFound)
	if err != nil && !absent {
		return DeleteAccountResult{}, newError(ErrorInternal, "target_profile_read_error", err).
			withMessage(s.catalog.T("account.delete_failed", err.Error()))
	}

	if err := s.directory.DeleteUser(ctx, targetID); err != nil {
		return DeleteAccountResult{}, newError(ErrorUpstream, "auth_delete_error", err).
			withMessage(s.catalog.T("account.delete_failed", err.Error()))
	}
	if !absent {
		if err := s.store.DeleteUser(ctx, targetID); err != nil {
			return DeleteAccountResult{}, newError(ErrorInternal, "profile_delete_error", err).
				withMessage(s.catalog.T("account.delete_failed", err.Error()))
		}
	}

	s.log.Info().Str("admin_id", caller.UserID).Str("user_id", targetID).Bool("already_absent", absent).Msg("account deleted")
	msg := s.catalog.T("account.deleted")
	if absent {
		msg = s.catalog.T("account.already_deleted")
	}
	return DeleteAccountResult{Success: true, Message: msg}, nil
}

// ApproveDoctorRequest creates the doctor's login account in a scoped session and
// writes the user profile, doctor profile and request status in one batch.
func (s *AdminService) ApproveDoctorRequest(ctx context.Context, caller Caller, requestID string) (Approval, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return Approval{}, newError(ErrorInvalidInput, "missing_request_id", nil)
	}
	if _, e := profileOf(ctx, s.store, caller, domain.RoleAdmin); e != nil {
		return Approval{}, e
	}
	req, err := s.store.GetDoctorRequest(ctx, requestID)
	if err != nil {
		return Approval{}, storeError("request_not_found", err)
	}
	if req.Status != domain.RequestPending {
		return Approval{}, newError(ErrorConflict, "request_not_pending", nil)
	}

	at := now()
	req.ReviewedBy = caller.UserID
	req.ReviewedAt = at
	account, err := s.provisioner.Provision(ctx, req.Email, func(ctx context.Context, acc domain.ProvisionedAccount) error {
		user := domain.UserProfile{
			ID:        acc.UserID,
			Email:     acc.Email,
			Name:      req.Name,
			Phone:     req.Phone,
			Role:      domain.RoleDoctor,
			CreatedAt: at,
		}
		doctor := domain.Doctor{
			ID:        acc.UserID,
			Name:      req.Name,
			Email:     acc.Email,
			Phone:     req.Phone,
			Specialty: req.Specialty,
			CreatedAt: at,
			UpdatedAt: at,
		}
		return s.store.ApproveDoctorRequest(ctx, req, user, doctor)
	})
	switch {
	case err == nil:
	case errors.Is(err, identity.ErrAccountExists):
		return Approval{}, newError(ErrorConflict, "account_exists", err)
	case errors.Is(err, provision.ErrCreateAccount):
		return Approval{}, newError(ErrorUpstream, "account_create_error", err)
	case errors.Is(err, repository.ErrConditionFailed):
		return Approval{}, newError(ErrorConflict, "request_not_pending", err)
	default:
		return Approval{}, newError(ErrorInternal, "profile_write_error", err)
	}

	req.Status = domain.RequestApproved
	req.DoctorID = account.UserID
	s.log.Info().Str("admin_id", caller.UserID).Str("request_id", req.ID).Str("doctor_id", account.UserID).Msg("doctor request approved")
	return Approval{Request: req, Account: account}, nil
}

func (s *AdminService) RejectDoctorRequest(ctx context.Context, caller Caller, requestID string) error {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return newError(ErrorInvalidInput, "missing_request_id", nil)
	}
	if _, e := profileOf(ctx, s.store, caller, domain.RoleAdmin); e != nil {
		return e
	}
	if _, err := s.store.GetDoctorRequest(ctx, requestID); err != nil {
		return storeError("request_not_found", err)
	}
	if err := s.store.RejectDoctorRequest(ctx, requestID, caller.UserID, now()); err != nil {
		return storeError("request_not_pending", err)
	}
	return nil
}

// ListDoctorRequests returns requests in status, pending when status is empty.
func (s *AdminService) ListDoctorRequests(ctx context.Context, caller Caller, status domain.RequestStatus) ([]domain.DoctorRequest, error) {
	if status == "" {
		status = domain.RequestPending
	}
	switch status {
	case domain.RequestPending, domain.RequestApproved, domain.RequestRejected:
	default:
		return nil, newError(ErrorInvalidInput, "invalid_status", nil)
	}
	if _, e := profileOf(ctx, s.store, caller, domain.RoleAdmin); e != nil {
		return nil, e
	}
	reqs, err := s.store.ListDoctorRequests(ctx, status)
	if err != nil {
		return nil, newError(ErrorInternal, "requests_read_error", err)
	}
	return reqs, nil
}

// RunRetentionSweep runs the retention sweep on demand with the same semantics as
// the scheduled run.
func (s *AdminService) RunRetentionSweep(ctx context.Context, caller Caller) (retention.Report, error) {
	if _, e := profileOf(ctx, s.store, caller, domain.RoleAdmin); e != nil {
		return retention.Report{}, e
	}
	return s.sweeper.Run(ctx, retention.TriggerManual), nil
}
