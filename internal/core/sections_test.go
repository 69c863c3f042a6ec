package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas.app/backend/internal/store"
)

const structuredResponse = `Main Thesis: The Earth is flat.

Key Claims:
- The Earth is flat. This claim is inaccurate.

Evidence Quality: No evidence is offered.

Potential Biases: Distrust of scientific institutions.

Counterarguments: Satellite imagery and circumnavigation.`

func TestParseSections_AllLabels(t *testing.T) {
	sections := ParseSections(structuredResponse)
	require.Len(t, sections, 5)

	assert.Equal(t, "The Earth is flat.", sections[store.SectionMainThesis])
	assert.Equal(t, "- The Earth is flat. This claim is inaccurate.", sections[store.SectionKeyClaims])
	assert.Equal(t, "No evidence is offered.", sections[store.SectionEvidenceQuality])
	assert.Equal(t, "Distrust of scientific institutions.", sections[store.SectionPotentialBiases])
	assert.Equal(t, "Satellite imagery and circumnavigation.", sections[store.SectionCounterargs])

	// values appear in the raw text in label order
	last := -1
	for _, name := range store.SectionOrder {
		v := sections[name]
		require.NotEmpty(t, v, name)
		idx := strings.Index(structuredResponse, v)
		assert.Greater(t, idx, last, name)
		last = idx
	}
}

func TestParseSections_NoLabels(t *testing.T) {
	sections := ParseSections("This claim is accurate: water boils at 100°C at sea level.")
	assert.NotNil(t, sections)
	assert.Empty(t, sections)

	assert.Empty(t, ParseSections(""))
}

func TestParseSections_Partial(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[store.SectionName]string
	}{
		{
			name: "missing middle label",
			raw:  "Main Thesis: a\nEvidence Quality: b",
			want: map[store.SectionName]string{
				store.SectionMainThesis:      "a",
				store.SectionEvidenceQuality: "b",
			},
		},
		{
			name: "labels out of order",
			raw:  "Counterarguments: z\nMain Thesis: a",
			want: map[store.SectionName]string{
				store.SectionCounterargs: "z",
				store.SectionMainThesis:  "a",
			},
		},
		{
			name: "case sensitive",
			raw:  "main thesis: ignored\nKey Claims: kept",
			want: map[store.SectionName]string{
				store.SectionKeyClaims: "kept",
			},
		},
		{
			name: "label without colon is not a label",
			raw:  "Main Thesis a\nKey Claims: kept",
			want: map[store.SectionName]string{
				store.SectionKeyClaims: "kept",
			},
		},
		{
			name: "quoted label cuts the section short",
			raw:  "Main Thesis: the author says Key Claims: are weak\nKey Claims: real",
			want: map[store.SectionName]string{
				store.SectionMainThesis: "the author says",
				store.SectionKeyClaims:  "are weak\nKey Claims: real",
			},
		},
		{
			name: "empty section value",
			raw:  "Main Thesis:\nKey Claims: c",
			want: map[store.SectionName]string{
				store.SectionMainThesis: "",
				store.SectionKeyClaims:  "c",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSections(tt.raw))
		})
	}
}

func TestNewAnalysis(t *testing.T) {
	structured := NewAnalysis(structuredResponse)
	assert.True(t, structured.IsStructured())
	assert.True(t, structured.Flagged)
	assert.Equal(t, structuredResponse, structured.RawText)

	freeform := NewAnalysis("This claim is accurate")
	assert.False(t, freeform.IsStructured())
	assert.False(t, freeform.Flagged)
}
