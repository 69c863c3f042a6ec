package core

import (
	"strings"

	"veritas.app/backend/internal/store"
)

var inaccuracyMarkers = []string{"inaccurate", "false"}

// IsFlagged is a keyword heuristic, not a semantic judgement: any mention
// of a marker word flags the analysis, whatever the context.
func IsFlagged(a store.Analysis) bool {
	text := strings.ToLower(a.FlaggedText())
	for _, marker := range inaccuracyMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
