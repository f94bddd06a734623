package models

import (
	"strings"
	"time"
)

type UserRole string

const (
	RoleStudent    UserRole = "student"
	RoleInstructor UserRole = "instructor"
	RoleAdmin      UserRole = "admin"
	RoleSuperAdmin UserRole = "superadmin"
)

// IsStaff reports whether the role bypasses tier gating. Unknown roles are
// treated as students.
func (r UserRole) IsStaff() bool {
	return r.IsValid() && r != RoleStudent
}

func (r UserRole) IsValid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Level is a learner's proficiency tier.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Levels lists the tiers in ascending order.
var Levels = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced}

// NormalizeLevel maps any stored value onto a known tier. Unknown or corrupt
// values fall back to beginner.
func NormalizeLevel(raw string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(raw))) {
	case LevelIntermediate:
		return LevelIntermediate
	case LevelAdvanced:
		return LevelAdvanced
	default:
		return LevelBeginner
	}
}

// Next returns the tier after l, and false when l is terminal.
func (l Level) Next() (Level, bool) {
	switch NormalizeLevel(string(l)) {
	case LevelBeginner:
		return LevelIntermediate, true
	case LevelIntermediate:
		return LevelAdvanced, true
	default:
		return LevelAdvanced, false
	}
}

// Rank orders tiers; beginner is 0.
func (l Level) Rank() int {
	switch NormalizeLevel(string(l)) {
	case LevelIntermediate:
		return 1
	case LevelAdvanced:
		return 2
	default:
		return 0
	}
}

// RoomName is the display name of the global room for the tier.
func (l Level) RoomName() string {
	n := string(NormalizeLevel(string(l)))
	return strings.ToUpper(n[:1]) + n[1:]
}

// UserProfile is the community-side view of an identity: role, tier and
// onboarding state. Identity itself is owned by Casdoor.
type UserProfile struct {
	ID                  string     `json:"id" gorm:"primaryKey;size:255"`
	FullName            string     `json:"full_name" gorm:"size:100"`
	Email               string     `json:"email" gorm:"size:255;index"`
	Role                UserRole   `json:"role" gorm:"size:20;not null;default:student;index"`
	Level               Level      `json:"level" gorm:"size:20;not null;default:beginner;index"`
	OnboardingCompleted bool       `json:"onboarding_completed" gorm:"not null;default:false"`
	LevelUpdatedAt      *time.Time `json:"level_updated_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

// Principal is the verified actor of a request.
type Principal struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Email               string   `json:"email,omitempty"`
	Role                UserRole `json:"role"`
	Level               Level    `json:"level"`
	OnboardingCompleted bool     `json:"onboarding_completed"`
}

func (p *Principal) IsStudent() bool {
	return p != nil && !p.Role.IsStaff()
}

// NewPrincipal builds a principal from a stored profile.
func NewPrincipal(profile *UserProfile) *Principal {
	return &Principal{
		ID:                  profile.ID,
		Name:                profile.FullName,
		Email:               profile.Email,
		Role:                profile.Role,
		Level:               NormalizeLevel(string(profile.Level)),
		OnboardingCompleted: profile.OnboardingCompleted,
	}
}

// Identity is what the identity provider vouches for: who the caller is and
// which role they hold. Tier and onboarding live on the profile.
type Identity struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Role  UserRole `json:"role"`
}
