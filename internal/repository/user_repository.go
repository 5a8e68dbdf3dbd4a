package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/store"
)

type UserRepository struct {
	store store.RecordStore
}

func NewUserRepository(s store.RecordStore) *UserRepository {
	return &UserRepository{store: s}
}

func userPath(id uuid.UUID) string {
	return store.Join(store.UsersPrefix, id.String())
}

func banPath(id uuid.UUID) string {
	return store.Join(store.BansPrefix, id.String())
}

func credentialPath(id uuid.UUID) string {
	return store.Join(store.CredentialsPrefix, id.String())
}

// Credential is a user's password hash, kept apart from the profile record
// so listing or returning profiles never exposes it.
type Credential struct {
	UserID       uuid.UUID `json:"user_id"`
	PasswordHash string    `json:"password_hash"`
}

// Create persists a new profile. Role defaults to user, status to active,
// and permissions are derived from the role before writing.
func (r *UserRepository) Create(ctx context.Context, user *models.UserProfile) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Status == "" {
		user.Status = models.StatusActive
	}
	user.Permissions = models.PermissionsForRole(user.Role)
	if err := r.store.Write(ctx, userPath(user.ID), user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// SetCredential stores or replaces the user's password hash.
func (r *UserRepository) SetCredential(ctx context.Context, id uuid.UUID, passwordHash string) error {
	cred := Credential{UserID: id, PasswordHash: passwordHash}
	if err := r.store.Write(ctx, credentialPath(id), cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// GetCredential returns the stored password hash for a user.
func (r *UserRepository) GetCredential(ctx context.Context, id uuid.UUID) (string, error) {
	var cred Credential
	err := r.store.Read(ctx, credentialPath(id), &cred)
	if err == store.ErrNotFound {
		return "", fmt.Errorf("credential not found")
	}
	if err != nil {
		return "", fmt.Errorf("failed to get credential: %w", err)
	}
	return cred.PasswordHash, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	user := &models.UserProfile{}
	err := r.store.Read(ctx, userPath(id), user)
	if err == store.ErrNotFound {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	var found *models.UserProfile
	err := r.store.List(ctx, store.UsersPrefix, func(path string, raw []byte) error {
		var u models.UserProfile
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil
		}
		if u.Email == email {
			found = &u
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up user by email: %w", err)
	}
	if found == nil {
		return nil, fmt.Errorf("user not found")
	}
	return found, nil
}

// ListAll returns every profile, oldest account first.
func (r *UserRepository) ListAll(ctx context.Context) ([]models.UserProfile, error) {
	users := []models.UserProfile{}
	err := r.store.List(ctx, store.UsersPrefix, func(path string, raw []byte) error {
		var u models.UserProfile
		if err := json.Unmarshal(raw, &u); err != nil {
			return fmt.Errorf("failed to decode user at %s: %w", path, err)
		}
		users = append(users, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// TouchActivity bumps the message counter and last-active time after a
// send. Callers treat a failure here as best-effort.
func (r *UserRepository) TouchActivity(ctx context.Context, id uuid.UUID) error {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return r.merge(ctx, id, map[string]interface{}{
		"message_count":  user.MessageCount + 1,
		"last_active_at": time.Now(),
	})
}

// IncrementFlagCount bumps the flag counter. Best-effort on the caller side.
func (r *UserRepository) IncrementFlagCount(ctx context.Context, id uuid.UUID) error {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return r.merge(ctx, id, map[string]interface{}{"flag_count": user.FlagCount + 1})
}

// Warn bumps the warning counter and returns the new count.
func (r *UserRepository) Warn(ctx context.Context, id uuid.UUID) (int, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	count := user.WarningCount + 1
	if err := r.merge(ctx, id, map[string]interface{}{"warning_count": count}); err != nil {
		return 0, err
	}
	return count, nil
}

// SetRole changes the role and re-derives permissions in the same write,
// keeping the stored permission set consistent with the role.
func (r *UserRepository) SetRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	switch role {
	case models.RoleUser, models.RoleModerator, models.RoleAdmin:
	default:
		return fmt.Errorf("invalid role %q", role)
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return r.merge(ctx, id, map[string]interface{}{
		"role":        role,
		"permissions": models.PermissionsForRole(role),
	})
}

// SetStatus changes account standing without touching ban history.
func (r *UserRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.Status) error {
	switch status {
	case models.StatusActive, models.StatusBanned, models.StatusSuspended:
	default:
		return fmt.Errorf("invalid status %q", status)
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return r.merge(ctx, id, map[string]interface{}{"status": status})
}

// Ban records a new ban and flips the profile to banned. The two writes
// are sequential; if the status write fails the ban record stands and the
// caller should retry. A user with an active ban cannot be banned again.
func (r *UserRepository) Ban(ctx context.Context, userID, bannedBy uuid.UUID, reason string, duration time.Duration) (*models.BanRecord, error) {
	if active, err := r.ActiveBan(ctx, userID); err != nil {
		return nil, err
	} else if active != nil {
		return nil, fmt.Errorf("user already has an active ban")
	}
	if _, err := r.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	ban := &models.BanRecord{
		ID:         uuid.New(),
		UserID:     userID,
		BannedByID: bannedBy,
		Reason:     reason,
		Type:       models.BanPermanent,
		StartAt:    time.Now(),
		IsActive:   true,
	}
	if duration > 0 {
		end := ban.StartAt.Add(duration)
		ban.Type = models.BanTemporary
		ban.EndAt = &end
	}
	if err := ban.Validate(); err != nil {
		return nil, err
	}

	if err := r.store.Write(ctx, banPath(ban.ID), ban); err != nil {
		return nil, fmt.Errorf("failed to write ban: %w", err)
	}
	if err := r.SetStatus(ctx, userID, models.StatusBanned); err != nil {
		return nil, err
	}
	return ban, nil
}

// Unban revokes the single active ban and restores the profile to active.
// Fails when no active ban exists instead of silently succeeding.
func (r *UserRepository) Unban(ctx context.Context, userID, revokedBy uuid.UUID, reason string) (*models.BanRecord, error) {
	ban, err := r.ActiveBan(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ban == nil {
		return nil, fmt.Errorf("no active ban for user")
	}

	now := time.Now()
	ban.IsActive = false
	ban.RevokedByID = &revokedBy
	ban.RevokedAt = &now
	if reason != "" {
		ban.RevokeReason = &reason
	}

	if err := r.store.Write(ctx, banPath(ban.ID), ban); err != nil {
		return nil, fmt.Errorf("failed to revoke ban: %w", err)
	}
	if err := r.SetStatus(ctx, userID, models.StatusActive); err != nil {
		return nil, err
	}
	return ban, nil
}

// ActiveBan returns the user's active ban, or nil. A temporary ban past
// its end time is revoked lazily on first read and the profile restored
// to active, so expiry needs no background sweeper.
func (r *UserRepository) ActiveBan(ctx context.Context, userID uuid.UUID) (*models.BanRecord, error) {
	var active *models.BanRecord
	err := r.store.List(ctx, store.BansPrefix, func(path string, raw []byte) error {
		var b models.BanRecord
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil
		}
		if b.UserID == userID && b.IsActive {
			active = &b
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan bans: %w", err)
	}
	if active != nil && active.EndAt != nil && !active.EndAt.After(time.Now()) {
		if err := r.expireBan(ctx, active); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return active, nil
}

// expireBan closes an elapsed temporary ban and reactivates the profile.
func (r *UserRepository) expireBan(ctx context.Context, ban *models.BanRecord) error {
	now := time.Now()
	reason := "ban expired"
	ban.IsActive = false
	ban.RevokedAt = &now
	ban.RevokeReason = &reason
	if err := r.store.Write(ctx, banPath(ban.ID), ban); err != nil {
		return fmt.Errorf("failed to expire ban: %w", err)
	}
	return r.SetStatus(ctx, ban.UserID, models.StatusActive)
}

// BanHistory returns every ban ever issued against the user, newest first.
func (r *UserRepository) BanHistory(ctx context.Context, userID uuid.UUID) ([]models.BanRecord, error) {
	bans := []models.BanRecord{}
	err := r.store.List(ctx, store.BansPrefix, func(path string, raw []byte) error {
		var b models.BanRecord
		if err := json.Unmarshal(raw, &b); err != nil {
			return fmt.Errorf("failed to decode ban at %s: %w", path, err)
		}
		if b.UserID == userID {
			bans = append(bans, b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bans: %w", err)
	}
	sort.Slice(bans, func(i, j int) bool {
		return bans[i].StartAt.After(bans[j].StartAt)
	})
	return bans, nil
}

func (r *UserRepository) merge(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	if err := r.store.Merge(ctx, userPath(id), fields); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}
