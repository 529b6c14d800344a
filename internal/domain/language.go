package domain

import (
	"fmt"
	"strings"
)

// LanguageID identifies a programming language a problem can be solved in.
type LanguageID string

const (
	LanguageJavaScript LanguageID = "javascript"
	LanguagePython3    LanguageID = "python3"
	LanguageJava       LanguageID = "java"
	LanguageCPP        LanguageID = "cpp"
)

// SupportedLanguages lists the languages accepted by the execution service,
// in display order.
var SupportedLanguages = []LanguageID{
	LanguageJavaScript,
	LanguagePython3,
	LanguageJava,
	LanguageCPP,
}

// DefaultLanguage is the language a new workspace starts in.
const DefaultLanguage = LanguageJavaScript

// IsValid reports whether the language is one the execution service accepts.
func (l LanguageID) IsValid() bool {
	for _, s := range SupportedLanguages {
		if l == s {
			return true
		}
	}
	return false
}

func (l LanguageID) String() string {
	return string(l)
}

// ParseLanguage converts user input into a LanguageID.
func ParseLanguage(s string) (LanguageID, error) {
	lang := LanguageID(strings.ToLower(strings.TrimSpace(s)))
	if !lang.IsValid() {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, s)
	}
	return lang, nil
}
