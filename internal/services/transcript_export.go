package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/community-service/internal/models"
)

const (
	transcriptSheet       = "Transcript"
	transcriptContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var transcriptHeaders = []interface{}{
	"Sent At", "Sender", "Sender ID", "Type", "Content", "File", "Reactions", "Seen By",
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// ExportTranscript renders a room's full history as an XLSX workbook.
// Staff only.
func (s *messageService) ExportTranscript(ctx context.Context, roomID string, principal *models.Principal) (*Transcript, error) {
	if !principal.Role.IsStaff() {
		return nil, NewPermissionError(principal.ID, roomID, "room", "export", "only staff can export transcripts")
	}

	room, err := s.rooms.GetRoom(ctx, roomID, principal)
	if err != nil {
		return nil, err
	}

	messages, err := s.repo.Message().ListAllByRoom(ctx, nil, room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room history: %w", err)
	}

	data, err := renderTranscript(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to render transcript: %w", err)
	}

	s.logger.Info("Transcript exported", "room_id", room.ID, "user_id", principal.ID, "messages", len(messages))

	return &Transcript{
		FileName:    fmt.Sprintf("%s-%s.xlsx", slugify(room.Name), s.now().Format("20060102")),
		ContentType: transcriptContentType,
		Data:        data,
	}, nil
}

func renderTranscript(messages []*models.Message) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", transcriptSheet); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(transcriptSheet, "A1", &transcriptHeaders); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	lastColumn, err := excelize.ColumnNumberToName(len(transcriptHeaders))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(transcriptSheet, "A1", lastColumn+"1", headerStyle); err != nil {
		return nil, err
	}

	for i, m := range messages {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}

		row := []interface{}{
			m.CreatedAt.UTC().Format(time.RFC3339),
			m.SenderName,
			m.SenderID,
			string(m.Type),
			m.Content,
			stringValue(m.FileURL),
			formatReactions(m.Reactions),
			len(m.SeenBy),
		}
		if err := f.SetSheetRow(transcriptSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	if err := f.SetColWidth(transcriptSheet, "E", "E", 60); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// formatReactions renders "👍 x2, 🎉 x1" in first-seen order.
func formatReactions(reactions []models.Reaction) string {
	counts := make(map[string]int)
	var order []string
	for _, r := range reactions {
		if counts[r.Emoji] == 0 {
			order = append(order, r.Emoji)
		}
		counts[r.Emoji]++
	}

	parts := make([]string, 0, len(order))
	for _, emoji := range order {
		parts = append(parts, fmt.Sprintf("%s x%d", emoji, counts[emoji]))
	}
	return strings.Join(parts, ", ")
}

func slugify(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "room"
	}
	return slug
}
