package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/community-service/internal/models"
	"github.com/SAP-F-2025/community-service/internal/repositories"
)

type ProgressPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewProgressPostgreSQL(db *gorm.DB) repositories.ProgressRepository {
	return &ProgressPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

// A course belongs to a tier only when its tag names the tier exactly
// (trimmed, case-insensitive); corrupt tags belong to no tier. A course
// counts as completed when the learner's record exists and no lesson of the
// course is missing from it. jsonb_exists is the function form of the
// jsonb ? operator, which would clash with placeholders.
const levelCompletionQuery = `
SELECT COUNT(c.id) AS total,
       COUNT(c.id) FILTER (WHERE EXISTS (
           SELECT 1 FROM course_completions cc
           WHERE cc.user_id = @user
             AND cc.course_id = c.id
             AND NOT EXISTS (
                 SELECT 1 FROM lessons l
                 WHERE l.course_id = c.id
                   AND NOT jsonb_exists(cc.completed_lessons, l.id)
             )
       )) AS completed
FROM courses c
WHERE LOWER(TRIM(c.level)) = @level`

func (p *ProgressPostgreSQL) GetLevelCompletion(ctx context.Context, tx *gorm.DB, userID string, level models.Level) (*models.LevelCompletion, error) {
	var row struct {
		Total     int64
		Completed int64
	}

	err := p.helpers.getDB(tx).WithContext(ctx).
		Raw(levelCompletionQuery, map[string]interface{}{
			"user":  userID,
			"level": string(level),
		}).
		Scan(&row).Error
	if err != nil {
		return nil, handleDBError(err, "compute level completion")
	}

	return &models.LevelCompletion{
		Level:            level,
		TotalCourses:     row.Total,
		CompletedCourses: row.Completed,
	}, nil
}

func (p *ProgressPostgreSQL) GetCourse(ctx context.Context, tx *gorm.DB, courseID string) (*models.Course, error) {
	var course models.Course
	if err := p.helpers.getDB(tx).WithContext(ctx).First(&course, "id = ?", courseID).Error; err != nil {
		return nil, handleDBError(err, "get course")
	}
	return &course, nil
}

func (p *ProgressPostgreSQL) LessonBelongsToCourse(ctx context.Context, tx *gorm.DB, courseID, lessonID string) (bool, error) {
	var count int64
	err := p.helpers.getDB(tx).WithContext(ctx).
		Model(&models.Lesson{}).
		Where("id = ? AND course_id = ?", lessonID, courseID).
		Count(&count).Error
	if err != nil {
		return false, handleDBError(err, "check lesson")
	}
	return count > 0, nil
}

const addCompletedLessonQuery = `
INSERT INTO course_completions (user_id, course_id, completed_lessons, created_at, updated_at)
VALUES (@user, @course, jsonb_build_array(CAST(@lesson AS text)), NOW(), NOW())
ON CONFLICT (user_id, course_id) DO UPDATE SET
    completed_lessons = CASE
        WHEN jsonb_exists(course_completions.completed_lessons, CAST(@lesson AS text))
            THEN course_completions.completed_lessons
        ELSE course_completions.completed_lessons || jsonb_build_array(CAST(@lesson AS text))
    END,
    updated_at = NOW()`

// AddCompletedLesson is a single upsert, so concurrent completions of
// different lessons never lose each other.
func (p *ProgressPostgreSQL) AddCompletedLesson(ctx context.Context, tx *gorm.DB, userID, courseID, lessonID string) error {
	err := p.helpers.getDB(tx).WithContext(ctx).
		Exec(addCompletedLessonQuery, map[string]interface{}{
			"user":   userID,
			"course": courseID,
			"lesson": lessonID,
		}).Error
	return handleDBError(err, "add completed lesson")
}
