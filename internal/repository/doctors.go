package repository

import (
	"context"
	"fmt"
	"time"

	"clinic-booking/internal/domain"
)

// CreateDoctorRequest stores a new pending application.
func (c *Client) CreateDoctorRequest(ctx context.Context, req domain.DoctorRequest) error {
	if err := c.putItem(ctx, newDoctorRequestRecord(req), true); err != nil {
		return fmt.Errorf("repository: CreateDoctorRequest: %w", err)
	}
	return nil
}

func (c *Client) GetDoctorRequest(ctx context.Context, id string) (domain.DoctorRequest, error) {
	item, err := c.getItem(ctx, domain.CollectionDoctorRequests, id, true)
	if err != nil {
		return domain.DoctorRequest{}, fmt.Errorf("repository: GetDoctorRequest: %w", err)
	}
	var rec doctorRequestRecord
	if err := decode(item, &rec); err != nil {
		return domain.DoctorRequest{}, err
	}
	return rec.request()
}

// ListDoctorRequests returns requests in the given status, newest first.
func (c *Client) ListDoctorRequests(ctx context.Context, status domain.RequestStatus) ([]domain.DoctorRequest, error) {
	items, err := c.queryItems(ctx, Query{
		Collection: domain.CollectionDoctorRequests,
		Filters:    []Filter{Eq("status", string(status))},
		OrderBy:    "createdAt",
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListDoctorRequests: %w", err)
	}
	out := make([]domain.DoctorRequest, 0, len(items))
	for _, item := range items {
		var rec doctorRequestRecord
		if err := decode(item, &rec); err != nil {
			return nil, fmt.Errorf("repository: ListDoctorRequests: %w", err)
		}
		req, err := rec.request()
		if err != nil {
			return nil, fmt.Errorf("repository: ListDoctorRequests: %w", err)
		}
		out = append(out, req)
	}
	return out, nil
}

// ApproveDoctorRequest writes the new account's profile documents and closes the
// request in one batch. The request must still be pending.
func (c *Client) ApproveDoctorRequest(ctx context.Context, req domain.DoctorRequest, user domain.UserProfile, doctor domain.Doctor) error {
	b := c.newBatch()
	b.create(newUserRecord(user))
	b.put(newDoctorRecord(doctor))
	b.update(domain.CollectionDoctorRequests, req.ID, newUpdate().
		set(domain.RequestApproved, "status").
		set(req.ReviewedBy, "reviewedBy").
		set(req.ReviewedAt, "reviewedAt").
		set(doctor.ID, "doctorId").
		requireEq(domain.RequestPending, "status"))
	if err := c.commit(ctx, b); err != nil {
		return fmt.Errorf("repository: ApproveDoctorRequest: %w", err)
	}
	return nil
}

// RejectDoctorRequest marks a pending request rejected.
func (c *Client) RejectDoctorRequest(ctx context.Context, id, reviewer string, at time.Time) error {
	u := newUpdate().
		set(domain.RequestRejected, "status").
		set(reviewer, "reviewedBy").
		set(at, "reviewedAt").
		requireEq(domain.RequestPending, "status")
	if err := c.updateItem(ctx, domain.CollectionDoctorRequests, id, u); err != nil {
		return fmt.Errorf("repository: RejectDoctorRequest: %w", err)
	}
	return nil
}

func (c *Client) GetDoctor(ctx context.Context, id string) (domain.Doctor, error) {
	item, err := c.getItem(ctx, domain.CollectionDoctors, id, false)
	if err != nil {
		return domain.Doctor{}, fmt.Errorf("repository: GetDoctor: %w", err)
	}
	var rec doctorRecord
	if err := decode(item, &rec); err != nil {
		return domain.Doctor{}, err
	}
	return rec.doctor(), nil
}

// ListDoctors returns doctors ordered by name, optionally restricted to a specialty.
func (c *Client) ListDoctors(ctx context.Context, specialty string) ([]domain.Doctor, error) {
	q := Query{Collection: domain.CollectionDoctors, OrderBy: "name"}
	if specialty != "" {
		q.Filters = []Filter{Eq("specialty", specialty)}
	}
	items, err := c.queryItems(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repository: ListDoctors: %w", err)
	}
	out := make([]domain.Doctor, 0, len(items))
	for _, item := range items {
		var rec doctorRecord
		if err := decode(item, &rec); err != nil {
			return nil, fmt.Errorf("repository: ListDoctors: %w", err)
		}
		out = append(out, rec.doctor())
	}
	return out, nil
}

// UpdateDoctorProfile applies the non-nil fields of upd to an existing doctor.
func (c *Client) UpdateDoctorProfile(ctx context.Context, id string, upd domain.DoctorProfileUpdate, at time.Time) error {
	u := newUpdate().set(at, "updatedAt").requireExists()
	if upd.Name != nil {
		u.set(*upd.Name, "name")
	}
	if upd.Phone != nil {
		u.set(*upd.Phone, "phone")
	}
	if upd.Specialty != nil {
		u.set(*upd.Specialty, "specialty")
	}
	if upd.Bio != nil {
		u.set(*upd.Bio, "bio")
	}
	if upd.ClinicAddress != nil {
		u.set(*upd.ClinicAddress, "clinicAddress")
	}
	if upd.Fee != nil {
		u.set(*upd.Fee, "fee")
	}
	if err := c.updateItem(ctx, domain.CollectionDoctors, id, u); err != nil {
		return fmt.Errorf("repository: UpdateDoctorProfile: %w", err)
	}
	return nil
}
