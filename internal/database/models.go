package database

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Handle      string    `json:"handle" gorm:"uniqueIndex"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email" gorm:"uniqueIndex"`
	Avatar      *string   `json:"avatar"`

	// Exactly one of PasswordHash and GoogleID is required for a usable
	// account; a freshly registered unverified user has only PasswordHash.
	PasswordHash *string `json:"-"`
	GoogleID     *string `json:"-" gorm:"uniqueIndex:,where:google_id IS NOT NULL"`

	IsVerified               bool       `json:"is_verified" gorm:"default:false"`
	VerificationToken        *string    `json:"-"`
	VerificationTokenExpires *time.Time `json:"-"`

	ResetPasswordToken   *string    `json:"-"`
	ResetPasswordExpires *time.Time `json:"-"`

	RefreshTokenHash *string `json:"-"`

	LastLogin        *time.Time `json:"-"`
	FailedLoginCount int        `json:"-" gorm:"default:0"`
	LockUntil        *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at" gorm:"default:now()"`
}

func (u *User) TableName() string {
	return "account.user"
}

// IsLocked is derived from the lock timestamp, never stored on its own.
func (u *User) IsLocked() bool {
	return u.LockUntil != nil && u.LockUntil.After(time.Now())
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Profile is the public projection of a user. Anything handed to a client
// goes through here; secret-bearing fields have no place to hide.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Avatar      *string   `json:"avatar"`
	IsVerified  bool      `json:"is_verified"`
}

func (u *User) Public() Profile {
	return Profile{
		ID:          u.ID,
		Handle:      u.Handle,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Avatar:      u.Avatar,
		IsVerified:  u.IsVerified,
	}
}
