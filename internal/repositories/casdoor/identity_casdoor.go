package casdoor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"

	"github.com/SAP-F-2025/community-service/internal/config"
	"github.com/SAP-F-2025/community-service/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// IdentityCasdoor verifies Casdoor-issued JWTs and maps their claims to an
// Identity.
type IdentityCasdoor struct {
	client *casdoorsdk.Client
}

func NewIdentityCasdoor(cfg config.CasdoorConfig) *IdentityCasdoor {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)

	return &IdentityCasdoor{client: client}
}

// Verify checks the token signature and expiry and returns the caller.
func (i *IdentityCasdoor) Verify(_ context.Context, token string) (*models.Identity, error) {
	claims, err := i.client.ParseJwtToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	identity := IdentityFromUser(&claims.User)
	if identity == nil || identity.ID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return identity, nil
}

// ===== CONVERSION METHODS =====

func IdentityFromUser(user *casdoorsdk.User) *models.Identity {
	if user == nil {
		return nil
	}

	name := user.DisplayName
	if name == "" {
		name = user.Name
	}

	return &models.Identity{
		ID:    user.Id,
		Name:  name,
		Email: user.Email,
		Role:  ResolveRole(user),
	}
}

// ResolveRole picks the most privileged role the user holds. Casdoor admins
// map to admin even without an explicit role.
func ResolveRole(user *casdoorsdk.User) models.UserRole {
	best := mapSingleRole(user.Type)

	for _, role := range user.Roles {
		if role == nil {
			continue
		}
		if mapped := mapSingleRole(role.Name); rolePriority(mapped) > rolePriority(best) {
			best = mapped
		}
	}

	if user.IsAdmin && rolePriority(best) < rolePriority(models.RoleAdmin) {
		best = models.RoleAdmin
	}
	return best
}

func mapSingleRole(name string) models.UserRole {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "superadmin", "super_admin", "super-admin":
		return models.RoleSuperAdmin
	case "admin", "administrator":
		return models.RoleAdmin
	case "teacher", "instructor", "educator", "mentor":
		return models.RoleInstructor
	default:
		return models.RoleStudent
	}
}

func rolePriority(role models.UserRole) int {
	switch role {
	case models.RoleSuperAdmin:
		return 3
	case models.RoleAdmin:
		return 2
	case models.RoleInstructor:
		return 1
	default:
		return 0
	}
}
