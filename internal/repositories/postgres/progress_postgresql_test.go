package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/services"
	"github.com/SAP-F-2025/community-service/internal/validator"
)

func TestGetLevelCompletion_ZeroCoursesIsNotComplete(t *testing.T) {
	db := newTestDB(t)
	repo := NewProgressPostgreSQL(db)

	completion, err := repo.GetLevelCompletion(context.Background(), nil, "s1", models.LevelBeginner)
	require.NoError(t, err)
	assert.Zero(t, completion.TotalCourses)
	assert.Zero(t, completion.CompletedCourses)
	assert.False(t, completion.IsComplete())
}

func TestGetLevelCompletion_CountsOnlyFinishedCourses(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewProgressPostgreSQL(db)
	seedCourse(t, db, "c1", models.LevelBeginner, "c1-l1", "c1-l2")
	seedCourse(t, db, "c2", models.LevelBeginner, "c2-l1")
	seedCourse(t, db, "c3", models.LevelIntermediate, "c3-l1")

	require.NoError(t, repo.AddCompletedLesson(ctx, nil, "s1", "c1", "c1-l1"))
	require.NoError(t, repo.AddCompletedLesson(ctx, nil, "s1", "c2", "c2-l1"))
	require.NoError(t, repo.AddCompletedLesson(ctx, nil, "s2", "c1", "c1-l2"))

	completion, err := repo.GetLevelCompletion(ctx, nil, "s1", models.LevelBeginner)
	require.NoError(t, err)
	assert.EqualValues(t, 2, completion.TotalCourses)
	assert.EqualValues(t, 1, completion.CompletedCourses)
	assert.False(t, completion.IsComplete())

	require.NoError(t, repo.AddCompletedLesson(ctx, nil, "s1", "c1", "c1-l2"))
	completion, err = repo.GetLevelCompletion(ctx, nil, "s1", models.LevelBeginner)
	require.NoError(t, err)
	assert.True(t, completion.IsComplete())

	// another learner's record never counts
	completion, err = repo.GetLevelCompletion(ctx, nil, "s2", models.LevelBeginner)
	require.NoError(t, err)
	assert.Zero(t, completion.CompletedCourses)
}

func TestGetLevelCompletion_CourseTagsMatchExactly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewProgressPostgreSQL(db)
	seedCourse(t, db, "c1", " Beginner ", "c1-l1")
	seedCourse(t, db, "c2", "beginer", "c2-l1")

	completion, err := repo.GetLevelCompletion(ctx, nil, "s1", models.LevelBeginner)
	require.NoError(t, err)
	assert.EqualValues(t, 1, completion.TotalCourses)
}

func TestAddCompletedLesson_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewProgressPostgreSQL(db)
	seedCourse(t, db, "c1", models.LevelBeginner, "c1-l1", "c1-l2")

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.AddCompletedLesson(ctx, nil, "s1", "c1", "c1-l1"))
	}
	require.NoError(t, repo.AddCompletedLesson(ctx, nil, "s1", "c1", "c1-l2"))

	var record models.CourseCompletion
	require.NoError(t, db.First(&record, "user_id = ? AND course_id = ?", "s1", "c1").Error)
	assert.Equal(t, []string{"c1-l1", "c1-l2"}, []string(record.CompletedLessons))

	belongs, err := repo.LessonBelongsToCourse(ctx, nil, "c1", "c1-l2")
	require.NoError(t, err)
	assert.True(t, belongs)

	belongs, err = repo.LessonBelongsToCourse(ctx, nil, "c2", "c1-l2")
	require.NoError(t, err)
	assert.False(t, belongs)
}

func TestProgression_AdvancesOnlyAfterTheLastLesson(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewPostgreSQLRepository(RepositoryConfig{DB: db})
	engine := services.NewProgressionService(repo, db, slog.New(slog.NewTextHandler(io.Discard, nil)), validator.New(), nil, nil)

	seedProfile(t, db, "s1", models.RoleStudent, models.LevelBeginner)
	seedCourse(t, db, "c1", models.LevelBeginner, "c1-l1", "c1-l2")

	require.NoError(t, repo.Progress().AddCompletedLesson(ctx, nil, "s1", "c1", "c1-l1"))
	result, err := engine.EvaluateAdvancementSync(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, result.Advanced)
	assertStoredLevel(t, db, "s1", models.LevelBeginner)

	require.NoError(t, repo.Progress().AddCompletedLesson(ctx, nil, "s1", "c1", "c1-l2"))
	result, err = engine.EvaluateAdvancementSync(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, result.Advanced)
	assertStoredLevel(t, db, "s1", models.LevelIntermediate)

	// no intermediate courses: further evaluations are no-ops
	result, err = engine.EvaluateAdvancementSync(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, result.Advanced)
	assertStoredLevel(t, db, "s1", models.LevelIntermediate)
}

func TestProgression_UsesStoredTierOverCachedProfile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	client, _ := newTestRedis(t)
	repo := NewPostgreSQLRepository(RepositoryConfig{DB: db, RedisClient: client})
	engine := services.NewProgressionService(repo, db, slog.New(slog.NewTextHandler(io.Discard, nil)), validator.New(), nil, nil)

	seedProfile(t, db, "s1", models.RoleStudent, models.LevelBeginner)
	seedCourse(t, db, "c1", models.LevelBeginner, "c1-l1")
	seedCourse(t, db, "c2", models.LevelIntermediate, "c2-l1")

	// warm the cache with the beginner row, then move the row underneath it
	_, err := repo.Profile().GetByID(ctx, nil, "s1")
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.UserProfile{}).Where("id = ?", "s1").Update("level", models.LevelIntermediate).Error)

	require.NoError(t, repo.Progress().AddCompletedLesson(ctx, nil, "s1", "c1", "c1-l1"))
	require.NoError(t, repo.Progress().AddCompletedLesson(ctx, nil, "s1", "c2", "c2-l1"))

	result, err := engine.EvaluateAdvancementSync(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, result.Advanced)
	assert.Equal(t, models.LevelIntermediate, result.From)
	assertStoredLevel(t, db, "s1", models.LevelAdvanced)

	cached, err := repo.Profile().GetByID(ctx, nil, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.LevelAdvanced, cached.Level)
}

func assertStoredLevel(t *testing.T, db *gorm.DB, id string, want models.Level) {
	t.Helper()
	var profile models.UserProfile
	require.NoError(t, db.First(&profile, "id = ?", id).Error)
	assert.Equal(t, want, profile.Level)
}
