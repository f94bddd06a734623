package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/services"
	"github.com/SAP-F-2025/community-service/internal/utils"
)

// TokenVerifier checks a bearer token and returns the identity it vouches
// for. casdoor.IdentityCasdoor is the production implementation.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.Identity, error)
}

// CasdoorAuthMiddleware authenticates requests with Casdoor-issued JWTs
// and resolves the caller's community profile.
type CasdoorAuthMiddleware struct {
	BaseHandler
	verifier TokenVerifier
	identity services.IdentityService
}

func NewCasdoorAuthMiddleware(verifier TokenVerifier, identity services.IdentityService, logger utils.Logger) *CasdoorAuthMiddleware {
	return &CasdoorAuthMiddleware{
		BaseHandler: NewBaseHandler(logger),
		verifier:    verifier,
		identity:    identity,
	}
}

// AuthMiddleware requires a valid token. Browsers cannot set headers on an
// EventSource, so the access_token query parameter is accepted as well.
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c)
		if err != nil {
			cam.respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
			c.Abort()
			return
		}

		identity, err := cam.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			cam.respondError(c, http.StatusUnauthorized, "invalid_token", "invalid token", nil)
			c.Abort()
			return
		}

		principal, err := cam.identity.ResolvePrincipal(c.Request.Context(), identity)
		if err != nil {
			if errors.Is(err, services.ErrUnauthorized) {
				cam.respondError(c, http.StatusUnauthorized, "unauthorized", "unknown subject", nil)
			} else {
				cam.LogError(c, err, "Failed to resolve principal", "subject", identity.ID)
				cam.respondError(c, http.StatusServiceUnavailable, "store_unavailable", "failed to load profile", nil)
			}
			c.Abort()
			return
		}

		c.Set("user_id", principal.ID)
		c.Set("user", principal)
		c.Set("user_role", principal.Role)
		c.Next()
	}
}

// RequireRoleMiddleware checks if user has required role. Admins and super
// admins always pass.
func (cam *CasdoorAuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := GetUserRoleFromContext(c)
		if err != nil {
			cam.respondError(c, http.StatusForbidden, "forbidden", err.Error(), nil)
			c.Abort()
			return
		}

		if role != models.RoleAdmin && role != models.RoleSuperAdmin && !slices.Contains(requiredRoles, role) {
			cam.respondError(c, http.StatusForbidden, "forbidden",
				fmt.Sprintf("insufficient permissions, required role: %v", requiredRoles), nil)
			c.Abort()
			return
		}

		c.Next()
	}
}

func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("access_token"); token != "" {
			return token, nil
		}
		return "", errors.New("authorization header missing")
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" || tokenParts[1] == "" {
		return "", errors.New("invalid authorization header format")
	}
	return tokenParts[1], nil
}

// GetPrincipalFromContext extracts the caller from Gin context
func GetPrincipalFromContext(c *gin.Context) (*models.Principal, error) {
	user, exists := c.Get("user")
	if !exists {
		return nil, fmt.Errorf("user not found in context")
	}

	principal, ok := user.(*models.Principal)
	if !ok || principal == nil {
		return nil, fmt.Errorf("invalid user type in context")
	}
	return principal, nil
}

// GetUserRoleFromContext extracts user role from Gin context
func GetUserRoleFromContext(c *gin.Context) (models.UserRole, error) {
	userRole, exists := c.Get("user_role")
	if !exists {
		return "", fmt.Errorf("user role not found in context")
	}

	role, ok := userRole.(models.UserRole)
	if !ok {
		return "", fmt.Errorf("invalid user role type in context")
	}
	return role, nil
}
