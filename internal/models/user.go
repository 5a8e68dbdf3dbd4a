package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role determines what a user may do; permissions derive from it.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Status is the account standing of a user.
type Status string

const (
	StatusActive    Status = "active"
	StatusBanned    Status = "banned"
	StatusSuspended Status = "suspended"
)

// PermissionSet is derived from Role and persisted only for audit and
// display. PermissionsForRole is the source of truth, never the stored copy.
type PermissionSet struct {
	CanPost        bool `json:"can_post"`
	CanFlag        bool `json:"can_flag"`
	CanReviewFlags bool `json:"can_review_flags"`
	CanBanUsers    bool `json:"can_ban_users"`
	CanManageRoles bool `json:"can_manage_roles"`
	CanViewReports bool `json:"can_view_reports"`
}

// PermissionsForRole maps a role to its permission set. Pure.
func PermissionsForRole(role Role) PermissionSet {
	switch role {
	case RoleAdmin:
		return PermissionSet{
			CanPost: true, CanFlag: true, CanReviewFlags: true,
			CanBanUsers: true, CanManageRoles: true, CanViewReports: true,
		}
	case RoleModerator:
		return PermissionSet{
			CanPost: true, CanFlag: true, CanReviewFlags: true,
			CanBanUsers: true, CanViewReports: true,
		}
	default:
		return PermissionSet{CanPost: true, CanFlag: true}
	}
}

// UserProfile is the public account record. The password hash lives in a
// separate credential record so profile reads never carry it.
type UserProfile struct {
	ID           uuid.UUID     `json:"id"`
	Email        string        `json:"email"`
	DisplayName  string        `json:"display_name"`
	Role         Role          `json:"role"`
	Status       Status        `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActiveAt time.Time     `json:"last_active_at"`
	MessageCount int           `json:"message_count"`
	FlagCount    int           `json:"flag_count"`
	WarningCount int           `json:"warning_count"`
	Permissions  PermissionSet `json:"permissions"`
}

// Validate checks basic profile fields.
func (u *UserProfile) Validate() error {
	if u.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !strings.Contains(u.Email, "@") {
		return fmt.Errorf("invalid email")
	}
	if u.DisplayName == "" {
		return fmt.Errorf("display name is required")
	}
	if len(u.DisplayName) < 2 || len(u.DisplayName) > 100 {
		return fmt.Errorf("display name length invalid")
	}
	return nil
}

// BanType distinguishes temporary from permanent bans.
type BanType string

const (
	BanTemporary BanType = "temporary"
	BanPermanent BanType = "permanent"
)

// BanRecord is one entry of a user's ban history. At most one record per
// user has IsActive set at any time.
type BanRecord struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	BannedByID   uuid.UUID  `json:"banned_by_id"`
	Reason       string     `json:"reason"`
	Type         BanType    `json:"type"`
	StartAt      time.Time  `json:"start_at"`
	EndAt        *time.Time `json:"end_at,omitempty"`
	IsActive     bool       `json:"is_active"`
	RevokedByID  *uuid.UUID `json:"revoked_by_id,omitempty"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokeReason *string    `json:"revoke_reason,omitempty"`
}

// Validate enforces the end-time invariant: permanent bans have no end.
func (b *BanRecord) Validate() error {
	if b.UserID == uuid.Nil {
		return fmt.Errorf("user id is required")
	}
	if b.Type == BanPermanent && b.EndAt != nil {
		return fmt.Errorf("permanent ban cannot have an end time")
	}
	if b.Type == BanTemporary && b.EndAt == nil {
		return fmt.Errorf("temporary ban requires an end time")
	}
	return nil
}

type CreateUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

type BanUserRequest struct {
	Reason      string `json:"reason" binding:"required"`
	DurationMin int    `json:"duration_min"` // 0 means permanent
}

type UnbanUserRequest struct {
	Reason string `json:"reason"`
}

type SetRoleRequest struct {
	Role Role `json:"role" binding:"required"`
}
