package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SAP-F-2025/community-service/internal/models"
)

var policyRoomNames = []string{"Beginner", "Intermediate", "Advanced", "beginner", "ADVANCED", "Lounge", ""}

func TestCanAccess_StudentRequiresExactTier(t *testing.T) {
	for _, tier := range models.Levels {
		for _, room := range policyRoomNames {
			want := strings.ToLower(room) == string(tier)
			assert.Equal(t, want, CanAccess(tier, room, models.RoleStudent), "tier=%s room=%q", tier, room)
		}
	}
}

func TestCanAccess_IsNotHierarchical(t *testing.T) {
	assert.False(t, CanAccess(models.LevelAdvanced, "Beginner", models.RoleStudent))
	assert.False(t, CanAccess(models.LevelAdvanced, "Intermediate", models.RoleStudent))
	assert.False(t, CanAccess(models.LevelBeginner, "Intermediate", models.RoleStudent))
}

func TestCanAccess_StaffBypass(t *testing.T) {
	staffRoles := []models.UserRole{models.RoleInstructor, models.RoleAdmin, models.RoleSuperAdmin}
	tiers := append([]models.Level{"", "garbage"}, models.Levels...)

	for _, role := range staffRoles {
		for _, tier := range tiers {
			for _, room := range policyRoomNames {
				assert.True(t, CanAccess(tier, room, role), "role=%s tier=%q room=%q", role, tier, room)
			}
		}
	}
}

func TestCanAccess_CorruptTierFallsBackToBeginner(t *testing.T) {
	assert.True(t, CanAccess("wizard", "Beginner", models.RoleStudent))
	assert.False(t, CanAccess("wizard", "Intermediate", models.RoleStudent))
	assert.True(t, CanAccess("  Intermediate ", "Intermediate", models.RoleStudent))
}

func TestCanAccess_UnknownRoleIsStudent(t *testing.T) {
	assert.False(t, CanAccess(models.LevelBeginner, "Advanced", "moderator"))
	assert.True(t, CanAccess(models.LevelBeginner, "Beginner", "moderator"))
}

func TestCanAccessRoom(t *testing.T) {
	direct := &models.Room{ID: newTestID(), Name: "Office hours", Type: models.RoomDirect, Participants: []string{"t1", "s1"}}
	global := &models.Room{ID: newTestID(), Name: "Intermediate", Type: models.RoomGlobal}

	tests := []struct {
		name      string
		principal *models.Principal
		room      *models.Room
		want      bool
	}{
		{name: "participant", principal: student("s1", models.LevelBeginner), room: direct, want: true},
		{name: "non participant student", principal: student("s2", models.LevelBeginner), room: direct, want: false},
		{name: "non participant staff", principal: staff("admin", models.RoleAdmin), room: direct, want: false},
		{name: "global matching tier", principal: student("s1", models.LevelIntermediate), room: global, want: true},
		{name: "global other tier", principal: student("s1", models.LevelAdvanced), room: global, want: false},
		{name: "global staff", principal: staff("t", models.RoleInstructor), room: global, want: true},
		{name: "unknown room type", principal: staff("t", models.RoleAdmin), room: &models.Room{Type: "broadcast"}, want: false},
		{name: "nil principal", principal: nil, room: global, want: false},
		{name: "nil room", principal: student("s1", models.LevelBeginner), room: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccessRoom(tt.principal, tt.room))
		})
	}
}

func TestComputeEffectiveLevel(t *testing.T) {
	assert.Equal(t, models.LevelAdvanced, ComputeEffectiveLevel(staff("t", models.RoleInstructor)))
	assert.Equal(t, models.LevelAdvanced, ComputeEffectiveLevel(&models.Principal{ID: "a", Role: models.RoleSuperAdmin, Level: models.LevelBeginner}))
	assert.Equal(t, models.LevelIntermediate, ComputeEffectiveLevel(student("s", models.LevelIntermediate)))
	assert.Equal(t, models.LevelBeginner, ComputeEffectiveLevel(student("s", "")))
	assert.Equal(t, models.LevelBeginner, ComputeEffectiveLevel(nil))
}
