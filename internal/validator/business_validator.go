package validator

import (
	"strings"

	"github.com/SAP-F-2025/community-service/internal/models"
)

// BusinessValidator checks rules that span several fields
type BusinessValidator struct{}

func NewBusinessValidator() *BusinessValidator {
	return &BusinessValidator{}
}

// Validate dispatches on the request type; unknown types have no extra rules.
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	switch req := s.(type) {
	case *PostMessageRequest:
		return bv.ValidatePostMessage(req)
	case *NotifyRequest:
		return bv.ValidateNotify(req)
	case *CreateDirectRoomRequest:
		return bv.ValidateDirectRoom(req)
	}
	return nil
}

// ValidatePostMessage requires text for text messages and file metadata for media.
func (bv *BusinessValidator) ValidatePostMessage(req *PostMessageRequest) ValidationErrors {
	var errors ValidationErrors

	if req.Type == models.MessageText {
		if strings.TrimSpace(req.Content) == "" {
			errors = append(errors, ValidationError{
				Field:   "content",
				Message: "is required for text messages",
				Rule:    "business_logic",
			})
		}
		return errors
	}

	if req.FileMeta == nil {
		errors = append(errors, ValidationError{
			Field:   "file_meta",
			Message: "is required for " + string(req.Type) + " messages",
			Value:   req.Type,
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateNotify requires exactly one target.
func (bv *BusinessValidator) ValidateNotify(req *NotifyRequest) ValidationErrors {
	set := 0
	if req.Target.UserID != nil && *req.Target.UserID != "" {
		set++
	}
	if req.Target.Role != nil {
		set++
	}
	if req.Target.RoomID != nil && *req.Target.RoomID != "" {
		set++
	}

	if set != 1 {
		return ValidationErrors{{
			Field:   "target",
			Message: "exactly one of userId, role or roomId is required",
			Value:   set,
			Rule:    "business_logic",
		}}
	}
	return nil
}

// ValidateDirectRoom rejects duplicate participants.
func (bv *BusinessValidator) ValidateDirectRoom(req *CreateDirectRoomRequest) ValidationErrors {
	seen := make(map[string]bool, len(req.ParticipantIDs))
	for _, id := range req.ParticipantIDs {
		if seen[id] {
			return ValidationErrors{{
				Field:   "participant_ids",
				Message: "contains duplicates",
				Value:   id,
				Rule:    "business_logic",
			}}
		}
		seen[id] = true
	}
	return nil
}
