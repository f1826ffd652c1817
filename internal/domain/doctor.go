package domain

import "time"

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Doctor is the public profile of an approved doctor.
type Doctor struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Email                 string    `json:"email"`
	Phone                 string    `json:"phone"`
	Specialty             string    `json:"specialty"`
	Bio                   string    `json:"bio"`
	ClinicAddress         string    `json:"clinicAddress"`
	Fee                   int       `json:"fee"`
	SubscriptionPlan      string    `json:"subscriptionPlan"`
	SubscriptionExpiresAt time.Time `json:"subscriptionExpiresAt"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// DoctorProfileUpdate carries the fields a doctor may change on their own profile.
// Nil fields are left untouched.
type DoctorProfileUpdate struct {
	Name          *string `json:"name"`
	Phone         *string `json:"phone"`
	Specialty     *string `json:"specialty"`
	Bio           *string `json:"bio"`
	ClinicAddress *string `json:"clinicAddress"`
	Fee           *int    `json:"fee"`
}

// Empty reports whether the update changes nothing.
func (u DoctorProfileUpdate) Empty() bool {
	return u.Name == nil && u.Phone == nil && u.Specialty == nil && u.Bio == nil && u.ClinicAddress == nil && u.Fee == nil
}

// DoctorRequest is an application to join the platform awaiting admin review.
type DoctorRequest struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Email      string        `json:"email"`
	Phone      string        `json:"phone"`
	Specialty  string        `json:"specialty"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"createdAt"`
	ReviewedBy string        `json:"reviewedBy"`
	ReviewedAt time.Time     `json:"reviewedAt"`
	DoctorID   string        `json:"doctorId"`
}
