package account

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UnlimitedQuota marks pro accounts.
const UnlimitedQuota = -1

type Account struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	Role         string     `json:"role"`
	IsPro        bool       `json:"is_pro"`
	UploadQuota  int        `json:"upload_quota"`
	QuotaResetAt *time.Time `json:"quota_reset_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CanUpload reports whether the account may store one more file.
func (a *Account) CanUpload() bool {
	return a.IsPro || a.UploadQuota > 0
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=80"`
	Email    string `json:"email" validate:"omitempty,email,max=120"`
}
