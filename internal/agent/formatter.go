package agent

import (
	"strings"

	"github.com/m2tx/tutor_agent/internal/model"
)

// FormatHistory converts caller history into conversation turns. Entries are
// never dropped and every turn has at least one part.
func FormatHistory(entries []model.HistoryEntry, lang string) []model.Content {
	contents := make([]model.Content, 0, len(entries))
	for _, e := range entries {
		role := model.RoleModel
		if e.Sender == model.RoleUser {
			role = model.RoleUser
		}
		contents = append(contents, buildTurn(role, e.Text, e.Media, lang))
	}
	return contents
}

// FormatMessage converts the new user message into a user turn.
func FormatMessage(msg model.UserMessage, lang string) model.Content {
	return buildTurn(model.RoleUser, msg.Text, msg.Media, lang)
}

func buildTurn(role, text string, media []model.Media, lang string) model.Content {
	parts := make([]model.Part, 0, len(media)+1)
	if strings.TrimSpace(text) != "" {
		parts = append(parts, model.TextPart(text))
	}
	for i := range media {
		parts = append(parts, model.Part{Media: &media[i]})
	}
	if len(parts) == 0 {
		parts = append(parts, model.TextPart(placeholderText(lang)))
	}
	return model.Content{Role: role, Parts: parts}
}
