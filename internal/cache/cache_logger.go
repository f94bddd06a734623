package cache

import (
	"context"
	"log/slog"
)

// SafeInvalidatePattern invalidates a pattern and only logs failures
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete deletes keys and only logs failures
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

func GlobalRoomKey(name string) string {
	return "global:" + name
}

func ProfileKey(userID string) string {
	return "id:" + userID
}

func UnreadKey(roomID, userID string) string {
	return "unread:" + roomID + ":" + userID
}

// InvalidateProfileCache drops a profile after its tier or role changes.
func InvalidateProfileCache(ctx context.Context, cm *CacheManager, userID string) {
	SafeDelete(ctx, cm.Profile, ProfileKey(userID))
}

// InvalidateUnread drops every cached unread counter of a room.
func InvalidateUnread(ctx context.Context, cm *CacheManager, roomID string) {
	SafeInvalidatePattern(ctx, cm.Stats, "unread:"+roomID+":*")
}
