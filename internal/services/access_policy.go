package services

import (
	"strings"

	"github.com/SAP-F-2025/community-service/internal/models"
)

// CanAccess decides whether a principal with the given role and tier may
// enter the global room called roomName. Staff roles always may. A student
// may only enter the room whose name equals their tier, compared case
// insensitively; higher tiers do not unlock lower rooms.
func CanAccess(tier models.Level, roomName string, role models.UserRole) bool {
	if role.IsStaff() {
		return true
	}
	return strings.EqualFold(roomName, string(models.NormalizeLevel(string(tier))))
}

// CanAccessRoom applies CanAccess to global rooms and the participant list
// to direct rooms.
func CanAccessRoom(principal *models.Principal, room *models.Room) bool {
	if principal == nil || room == nil {
		return false
	}

	switch room.Type {
	case models.RoomGlobal:
		return CanAccess(principal.Level, room.Name, principal.Role)
	case models.RoomDirect:
		return room.HasParticipant(principal.ID)
	default:
		return false
	}
}

// ComputeEffectiveLevel is advanced for staff and the stored tier for
// students.
func ComputeEffectiveLevel(principal *models.Principal) models.Level {
	if principal == nil {
		return models.LevelBeginner
	}
	if principal.Role.IsStaff() {
		return models.LevelAdvanced
	}
	return models.NormalizeLevel(string(principal.Level))
}
