package core

import (
	"strings"

	"veritas.app/backend/internal/store"
)

// sectionLabels maps each section to the exact label the prompt asks the
// model to use. Matching is case-sensitive and includes the colon.
var sectionLabels = map[store.SectionName]string{
	store.SectionMainThesis:      "Main Thesis:",
	store.SectionKeyClaims:       "Key Claims:",
	store.SectionEvidenceQuality: "Evidence Quality:",
	store.SectionPotentialBiases: "Potential Biases:",
	store.SectionCounterargs:     "Counterarguments:",
}

// ParseSections splits model output into the known sections. Each value
// runs from its label to the nearest following label of another section,
// or to the end of the text. Only the first occurrence of a label counts,
// so a section that quotes another label is cut short there.
//
// An empty map means no structure was detected and the raw text should be
// used as is.
func ParseSections(raw string) map[store.SectionName]string {
	starts := make(map[store.SectionName]int, len(sectionLabels))
	for _, name := range store.SectionOrder {
		if idx := strings.Index(raw, sectionLabels[name]); idx >= 0 {
			starts[name] = idx
		}
	}

	sections := make(map[store.SectionName]string, len(starts))
	for _, name := range store.SectionOrder {
		idx, ok := starts[name]
		if !ok {
			continue
		}
		begin := idx + len(sectionLabels[name])
		end := len(raw)
		for _, other := range store.SectionOrder {
			if other == name {
				continue
			}
			if next := strings.Index(raw[begin:], sectionLabels[other]); next >= 0 && begin+next < end {
				end = begin + next
			}
		}
		sections[name] = strings.TrimSpace(raw[begin:end])
	}
	return sections
}

// NewAnalysis builds an Analysis from raw model output and classifies it.
func NewAnalysis(raw string) store.Analysis {
	a := store.Analysis{RawText: raw, Sections: ParseSections(raw)}
	a.Flagged = IsFlagged(a)
	return a
}
