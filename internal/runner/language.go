package runner

import (
	"fmt"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// Runtime describes how a language is executed by each backend.
type Runtime struct {
	// JDoodle identifiers
	JDoodleLanguage string `yaml:"jdoodle_language"`
	VersionIndex    string `yaml:"version_index"`

	// Container execution
	Image    string   `yaml:"image"`
	FileName string   `yaml:"file_name"`
	Command  []string `yaml:"command"`
}

// Runtimes maps every supported language to its runtime.
type Runtimes map[domain.LanguageID]Runtime

// DefaultRuntimes returns the runtime table for the supported languages.
func DefaultRuntimes() Runtimes {
	return Runtimes{
		domain.LanguageJavaScript: {
			JDoodleLanguage: "nodejs",
			VersionIndex:    "4",
			Image:           "node:22-alpine",
			FileName:        "main.js",
			Command:         []string{"node", "main.js"},
		},
		domain.LanguagePython3: {
			JDoodleLanguage: "python3",
			VersionIndex:    "4",
			Image:           "python:3.12-alpine",
			FileName:        "main.py",
			Command:         []string{"python3", "main.py"},
		},
		domain.LanguageJava: {
			JDoodleLanguage: "java",
			VersionIndex:    "4",
			Image:           "eclipse-temurin:21-jdk-alpine",
			FileName:        "Main.java",
			Command:         []string{"java", "Main.java"},
		},
		domain.LanguageCPP: {
			JDoodleLanguage: "cpp17",
			VersionIndex:    "1",
			Image:           "gcc:14",
			FileName:        "main.cpp",
			Command:         []string{"sh", "-c", "g++ -std=c++17 -O2 -o main main.cpp && ./main"},
		},
	}
}

// Lookup returns the runtime for lang.
func (r Runtimes) Lookup(lang domain.LanguageID) (Runtime, error) {
	rt, ok := r[lang]
	if !ok {
		return Runtime{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedLanguage, lang)
	}
	return rt, nil
}

// Merge returns a copy of r with the non-empty fields of overrides applied.
func (r Runtimes) Merge(overrides Runtimes) Runtimes {
	out := make(Runtimes, len(r))
	for lang, rt := range r {
		out[lang] = rt
	}
	for lang, o := range overrides {
		rt := out[lang]
		if o.JDoodleLanguage != "" {
			rt.JDoodleLanguage = o.JDoodleLanguage
		}
		if o.VersionIndex != "" {
			rt.VersionIndex = o.VersionIndex
		}
		if o.Image != "" {
			rt.Image = o.Image
		}
		if o.FileName != "" {
			rt.FileName = o.FileName
		}
		if len(o.Command) > 0 {
			rt.Command = o.Command
		}
		out[lang] = rt
	}
	return out
}
