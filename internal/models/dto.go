package models

import "time"

// ===== VALIDATION RESPONSES =====

type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
	Code    string `json:"code"`
}

// ===== ACTION RESPONSES =====

type ReactionResponse struct {
	Success   bool       `json:"success"`
	Reactions []Reaction `json:"reactions"`
}

type SeenResponse struct {
	Success bool  `json:"success"`
	Updated int64 `json:"updated"`
}

type NotifyResponse struct {
	Success    bool `json:"success"`
	Recipients int  `json:"recipients"`
}

type MarkReadResponse struct {
	Success bool  `json:"success"`
	Updated int64 `json:"updated"`
}

// ProgressResponse summarises a learner's standing for the current tier.
type ProgressResponse struct {
	UserID     string          `json:"userId"`
	Level      Level           `json:"level"`
	NextLevel  *Level          `json:"nextLevel,omitempty"`
	Completion LevelCompletion `json:"completion"`
	UpdatedAt  *time.Time      `json:"levelUpdatedAt,omitempty"`
}

// ===== ERROR RESPONSES =====

type ErrorResponse struct {
	Error            string                    `json:"error,omitempty"`
	Message          string                    `json:"message"`
	Code             string                    `json:"code,omitempty"`
	Details          interface{}               `json:"details,omitempty"`
	Timestamp        time.Time                 `json:"timestamp"`
	Path             string                    `json:"path,omitempty"`
	ValidationErrors []ValidationErrorResponse `json:"validation_errors,omitempty"`
}

type SuccessResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
