package workspace

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Line change kinds.
const (
	LineAdded   = "added"
	LineRemoved = "removed"
)

// LineChange is one added or removed line relative to the starter code.
type LineChange struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	OldLine int    `json:"oldLine,omitempty"`
	NewLine int    `json:"newLine,omitempty"`
}

// maxDiffLines bounds the work done per projection.
const maxDiffLines = 2000

// lineChanges diffs before and after line by line. truncated is set when
// the inputs are too large to diff.
func lineChanges(before, after string) (changes []LineChange, truncated bool) {
	if before == after {
		return nil, false
	}
	if strings.Count(before, "\n")+strings.Count(after, "\n") > maxDiffLines {
		return nil, true
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	oldLine, newLine := 1, 1
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, text := range chunk {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				changes = append(changes, LineChange{Type: LineRemoved, Text: text, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				changes = append(changes, LineChange{Type: LineAdded, Text: text, NewLine: newLine})
				newLine++
			}
		}
	}
	return changes, false
}
