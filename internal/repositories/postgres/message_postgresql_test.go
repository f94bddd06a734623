package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/repositories"
)

func TestToggleReaction_SecondToggleRestoresSet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewMessagePostgreSQL(db, nil)
	room := seedRoom(t, db, "Beginner", models.RoomGlobal)
	msg := seedMessage(t, repo, room.ID, "s1", "hello", time.Now().UTC())

	thumbs := models.Reaction{Emoji: "👍", UserID: "s2", UserName: "Sam"}
	heart := models.Reaction{Emoji: "❤️", UserID: "s3", UserName: "Ana"}

	reactions, err := repo.ToggleReaction(ctx, nil, msg.ID, heart)
	require.NoError(t, err)
	assert.Equal(t, []models.Reaction{heart}, reactions)

	reactions, err = repo.ToggleReaction(ctx, nil, msg.ID, thumbs)
	require.NoError(t, err)
	assert.Equal(t, []models.Reaction{heart, thumbs}, reactions)

	reactions, err = repo.ToggleReaction(ctx, nil, msg.ID, thumbs)
	require.NoError(t, err)
	assert.Equal(t, []models.Reaction{heart}, reactions)

	// removing the last pair leaves an empty array, never null
	reactions, err = repo.ToggleReaction(ctx, nil, msg.ID, heart)
	require.NoError(t, err)
	assert.Empty(t, reactions)

	stored, err := repo.GetByID(ctx, nil, msg.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.Reactions)
	assert.Empty(t, stored.Reactions)
}

func TestToggleReaction_MissingMessage(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessagePostgreSQL(db, nil)

	_, err := repo.ToggleReaction(context.Background(), nil, models.NewMessageID(), models.Reaction{Emoji: "👍", UserID: "s1"})
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestMarkRoomSeen_OnlyGrows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewMessagePostgreSQL(db, nil)
	room := seedRoom(t, db, "Beginner", models.RoomGlobal)
	other := seedRoom(t, db, "Intermediate", models.RoomGlobal)

	now := time.Now().UTC()
	first := seedMessage(t, repo, room.ID, "s1", "one", now)
	seedMessage(t, repo, room.ID, "s2", "two", now.Add(time.Second))
	seedMessage(t, repo, other.ID, "s1", "elsewhere", now)

	// s2 already saw its own message
	updated, err := repo.MarkRoomSeen(ctx, nil, room.ID, "s2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)

	updated, err = repo.MarkRoomSeen(ctx, nil, room.ID, "s2")
	require.NoError(t, err)
	assert.Zero(t, updated)

	stored, err := repo.GetByID(ctx, nil, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, []string(stored.SeenBy))

	unread, err := repo.CountUnread(ctx, nil, other.ID, "s2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)
}

func TestCountUnread_ExcludesOwnAndSeenMessages(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewMessagePostgreSQL(db, nil)
	room := seedRoom(t, db, "Beginner", models.RoomGlobal)

	now := time.Now().UTC()
	seedMessage(t, repo, room.ID, "s1", "mine", now)
	seedMessage(t, repo, room.ID, "s2", "theirs", now.Add(time.Second))
	seedMessage(t, repo, room.ID, "s3", "also theirs", now.Add(2*time.Second))

	unread, err := repo.CountUnread(ctx, nil, room.ID, "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	_, err = repo.MarkRoomSeen(ctx, nil, room.ID, "s1")
	require.NoError(t, err)

	unread, err = repo.CountUnread(ctx, nil, room.ID, "s1")
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestDelete_DropsCachedUnreadCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	client, mr := newTestRedis(t)
	repo := NewMessagePostgreSQL(db, client)
	room := seedRoom(t, db, "Beginner", models.RoomGlobal)
	msg := seedMessage(t, repo, room.ID, "s1", "hello", time.Now().UTC())

	unread, err := repo.CountUnread(ctx, nil, room.ID, "s2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)
	assert.True(t, mr.Exists("stats:unread:"+room.ID+":s2"))

	require.NoError(t, repo.Delete(ctx, nil, msg.ID))
	assert.False(t, mr.Exists("stats:unread:"+room.ID+":s2"))

	unread, err = repo.CountUnread(ctx, nil, room.ID, "s2")
	require.NoError(t, err)
	assert.Zero(t, unread)

	assert.ErrorIs(t, repo.Delete(ctx, nil, msg.ID), repositories.ErrNotFound)
}

func TestListByRoom_EqualTimestampsKeepInsertionOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewMessagePostgreSQL(db, nil)
	room := seedRoom(t, db, "Beginner", models.RoomGlobal)

	at := time.Now().UTC().Truncate(time.Microsecond)
	var sent []string
	for _, content := range []string{"a", "b", "c", "d", "e"} {
		sent = append(sent, seedMessage(t, repo, room.ID, "s1", content, at).Content)
	}

	history, err := repo.ListAllByRoom(ctx, nil, room.ID)
	require.NoError(t, err)
	require.Len(t, history, len(sent))
	for i, m := range history {
		assert.Equal(t, sent[i], m.Content)
	}

	// newest first, paged
	page, err := repo.ListByRoom(ctx, nil, room.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "e", page[0].Content)
	assert.Equal(t, "d", page[1].Content)

	page, err = repo.ListByRoom(ctx, nil, room.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].Content)

	latest, err := repo.LatestInRoom(ctx, nil, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "e", latest.Content)
}
