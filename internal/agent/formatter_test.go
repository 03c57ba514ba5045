package agent

import (
	"testing"

	"github.com/m2tx/tutor_agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatHistoryRolesAndParts(t *testing.T) {
	entries := []model.HistoryEntry{
		{Sender: "user", Text: "look at this", Media: []model.Media{{MIMEType: "image/png", Data: []byte{1}}}},
		{Sender: "assistant", Text: "That's a cell diagram."},
		{Sender: "bot", Text: "anything else"},
	}

	got := FormatHistory(entries, "en")
	require.Len(t, got, 3)

	assert.Equal(t, model.RoleUser, got[0].Role)
	require.Len(t, got[0].Parts, 2)
	assert.Equal(t, "look at this", got[0].Parts[0].Text)
	require.NotNil(t, got[0].Parts[1].Media)
	assert.Equal(t, "image/png", got[0].Parts[1].Media.MIMEType)

	assert.Equal(t, model.RoleModel, got[1].Role)
	assert.Equal(t, model.RoleModel, got[2].Role)
}

func TestFormatHistoryNeverEmitsEmptyTurns(t *testing.T) {
	entries := []model.HistoryEntry{
		{Sender: "user"},
		{Sender: "model", Text: "   "},
		{Sender: "user", Text: ""},
		{Sender: "", Media: nil},
	}

	for _, lang := range []string{"en", "fr", "pt-BR", "xx-invalid", ""} {
		got := FormatHistory(entries, lang)
		require.Len(t, got, len(entries), "entries are never dropped")
		for _, turn := range got {
			require.NotEmpty(t, turn.Parts)
			assert.NotEmpty(t, turn.Parts[0].Text)
		}
	}
}

func TestPlaceholderIsLocalized(t *testing.T) {
	got := FormatHistory([]model.HistoryEntry{{Sender: "user"}}, "fr-CA")
	assert.Equal(t, "[message vide]", got[0].Parts[0].Text)

	got = FormatHistory([]model.HistoryEntry{{Sender: "user"}}, "zz")
	assert.Equal(t, "[empty message]", got[0].Parts[0].Text)
}

func TestFormatMessageMediaOnly(t *testing.T) {
	msg := FormatMessage(model.UserMessage{Media: []model.Media{{MIMEType: "image/jpeg", Data: []byte{9}}}}, "en")
	assert.Equal(t, model.RoleUser, msg.Role)
	require.Len(t, msg.Parts, 1)
	assert.NotNil(t, msg.Parts[0].Media)
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "fr", normalizeLanguage("fr"))
	assert.Equal(t, "pt", normalizeLanguage("pt-BR"))
	assert.Equal(t, "", normalizeLanguage(""))
	assert.Equal(t, "", normalizeLanguage("und"))
	assert.Equal(t, "", normalizeLanguage("not a language"))
	assert.Equal(t, "French", languageName("fr"))
}
