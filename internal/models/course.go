package models

import (
	"time"

	"gorm.io/datatypes"
)

// Course is read-only here; the catalog is owned by the course service.
type Course struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Title     string    `json:"title" gorm:"size:200"`
	Level     Level     `json:"level" gorm:"size:20;not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lessons []Lesson `json:"lessons,omitempty" gorm:"foreignKey:CourseID"`
}

func (Course) TableName() string {
	return "courses"
}

type Lesson struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CourseID  string    `json:"course_id" gorm:"size:36;not null;index"`
	Title     string    `json:"title" gorm:"size:200"`
	Position  int       `json:"position" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// CourseCompletion records which lessons of a course a learner finished.
type CourseCompletion struct {
	ID               uint                        `json:"id" gorm:"primaryKey"`
	UserID           string                      `json:"user_id" gorm:"size:255;not null;uniqueIndex:idx_completion_user_course,priority:1"`
	CourseID         string                      `json:"course_id" gorm:"size:36;not null;uniqueIndex:idx_completion_user_course,priority:2"`
	CompletedLessons datatypes.JSONSlice[string] `json:"completed_lessons" gorm:"type:jsonb;not null;default:'[]'"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

func (CourseCompletion) TableName() string {
	return "course_completions"
}

// LevelCompletion is the aggregate view of one tier for one learner.
type LevelCompletion struct {
	Level            Level `json:"level"`
	TotalCourses     int64 `json:"total_courses"`
	CompletedCourses int64 `json:"completed_courses"`
}

// IsComplete holds when every tagged course is covered. A tier with no
// courses is never complete.
func (c LevelCompletion) IsComplete() bool {
	return c.TotalCourses > 0 && c.CompletedCourses >= c.TotalCourses
}

// LessonCompletedEvent is the payload of the external lesson-complete event.
type LessonCompletedEvent struct {
	UserID     string    `json:"user_id" validate:"required"`
	CourseID   string    `json:"course_id" validate:"required"`
	LessonID   string    `json:"lesson_id" validate:"required"`
	OccurredAt time.Time `json:"occurred_at"`
}
