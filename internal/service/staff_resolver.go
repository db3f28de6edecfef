package service

import (
	"context"
	"errors"
	"slices"

	"github.com/spec-kit/ticket-bot/internal/platform"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// StaffResolver decides whether a guild member belongs to the staff role.
type StaffResolver struct {
	platform platform.Platform
	roleID   string
}

// NewStaffResolver creates a resolver for the configured staff role.
func NewStaffResolver(p platform.Platform, roleID string) *StaffResolver {
	return &StaffResolver{platform: p, roleID: roleID}
}

// IsStaff reports staff membership. roleIDs from the triggering event are
// used when present; nil roleIDs triggers a member lookup.
func (r *StaffResolver) IsStaff(ctx context.Context, guildID, userID string, roleIDs []string) (bool, error) {
	if r.roleID == "" {
		return false, apperrors.NewConfigurationError("STAFF_ROLE_ID")
	}
	if roleIDs == nil {
		member, err := r.platform.ResolveMember(ctx, guildID, userID)
		if errors.Is(err, platform.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, apperrors.NewPlatformError("resolve member", err)
		}
		roleIDs = member.RoleIDs
	}
	return slices.Contains(roleIDs, r.roleID), nil
}

// RoleID is the configured staff role.
func (r *StaffResolver) RoleID() string {
	return r.roleID
}
