package domain

import "time"

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// UserProfile is the application record behind a login account.
type UserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProvisionedAccount is produced when an account is created on someone else's behalf.
// Secret is only ever held in memory and returned once to the approving admin.
type ProvisionedAccount struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Secret string `json:"secret"`
}
