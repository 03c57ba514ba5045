package agent

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var placeholders = map[string]string{
	"en": "[empty message]",
	"fr": "[message vide]",
	"es": "[mensaje vacío]",
	"de": "[leere Nachricht]",
	"it": "[messaggio vuoto]",
	"pt": "[mensagem vazia]",
	"nl": "[leeg bericht]",
}

// normalizeLanguage returns the ISO 639 base code of s, or "" when s is not
// a confidently identified language.
func normalizeLanguage(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	tag, err := language.Parse(s)
	if err != nil || tag == language.Und {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// languageName gives the English name of a language code, e.g. "French".
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

func placeholderText(lang string) string {
	if p, ok := placeholders[normalizeLanguage(lang)]; ok {
		return p
	}
	return placeholders["en"]
}
