package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

const DefaultChatTitle = "New Chat"

type SectionName string

const (
	SectionMainThesis      SectionName = "main_thesis"
	SectionKeyClaims       SectionName = "key_claims"
	SectionEvidenceQuality SectionName = "evidence_quality"
	SectionPotentialBiases SectionName = "potential_biases"
	SectionCounterargs     SectionName = "counterarguments"
)

// SectionOrder is the canonical order of analysis sections.
var SectionOrder = []SectionName{
	SectionMainThesis,
	SectionKeyClaims,
	SectionEvidenceQuality,
	SectionPotentialBiases,
	SectionCounterargs,
}

// Analysis is the model output for one statement. It is either structured
// (Sections non-empty) or freeform (RawText only); both are valid.
//
// On the wire a structured analysis is an object keyed by section name and
// a freeform analysis is a plain string.
type Analysis struct {
	RawText  string
	Sections map[SectionName]string
	Flagged  bool
}

func (a Analysis) IsStructured() bool {
	return len(a.Sections) > 0
}

// FlaggedText is the text the inaccuracy heuristics run over: the section
// values in canonical order, or the raw text for a freeform analysis.
func (a Analysis) FlaggedText() string {
	if !a.IsStructured() {
		return a.RawText
	}
	parts := make([]string, 0, len(a.Sections))
	for _, name := range SectionOrder {
		if v, ok := a.Sections[name]; ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "\n")
}

func (a Analysis) sectionMap() map[string]string {
	m := make(map[string]string, len(a.Sections))
	for k, v := range a.Sections {
		m[string(k)] = v
	}
	return m
}

func (a *Analysis) setSections(m map[string]string) {
	a.Sections = make(map[SectionName]string, len(m))
	for k, v := range m {
		a.Sections[SectionName(k)] = v
	}
}

func (a Analysis) MarshalJSON() ([]byte, error) {
	if a.IsStructured() {
		return json.Marshal(a.sectionMap())
	}
	return json.Marshal(a.RawText)
}

func (a *Analysis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &a.RawText)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("analysis is neither text nor a section object: %w", err)
	}
	a.setSections(m)
	return nil
}

func (a Analysis) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if a.IsStructured() {
		return bson.MarshalValue(a.sectionMap())
	}
	return bson.MarshalValue(a.RawText)
}

func (a *Analysis) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	if s, ok := raw.StringValueOK(); ok {
		a.RawText = s
		return nil
	}
	var m map[string]string
	if err := raw.Unmarshal(&m); err != nil {
		return fmt.Errorf("decode analysis sections: %w", err)
	}
	a.setSections(m)
	return nil
}

type MessageType string

const (
	MessageTypeUser      MessageType = "user"
	MessageTypeAssistant MessageType = "assistant"
)

// Content is a message body: the statement text of a user turn or the
// analysis of an assistant turn.
type Content struct {
	Text     string
	Analysis *Analysis
}

func TextContent(s string) Content { return Content{Text: s} }

func AnalysisContent(a Analysis) Content { return Content{Analysis: &a} }

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Analysis != nil {
		return json.Marshal(*c.Analysis)
	}
	return json.Marshal(c.Text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.Text)
	}
	var a Analysis
	if err := a.UnmarshalJSON(data); err != nil {
		return err
	}
	c.Analysis = &a
	return nil
}

func (c Content) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if c.Analysis != nil {
		return c.Analysis.MarshalBSONValue()
	}
	return bson.MarshalValue(c.Text)
}

func (c *Content) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	if s, ok := raw.StringValueOK(); ok {
		c.Text = s
		return nil
	}
	var a Analysis
	if err := a.UnmarshalBSONValue(t, data); err != nil {
		return err
	}
	c.Analysis = &a
	return nil
}

type Chat struct {
	ID          string    `json:"id" bson:"_id"`
	UserID      string    `json:"userId" bson:"userId"`
	Title       string    `json:"title" bson:"title"`
	CreatedAt   time.Time `json:"created" bson:"created"`
	LastUpdated time.Time `json:"lastUpdated" bson:"lastUpdated"`
}

// Message is one chat turn. Assistant messages always carry Sources,
// possibly empty; user messages carry none.
type Message struct {
	ID        string      `json:"id" bson:"_id"`
	ChatID    string      `json:"chatId" bson:"chatId"`
	UserID    string      `json:"userId" bson:"userId"`
	Content   Content     `json:"content" bson:"content"`
	Sources   []string    `json:"sources,omitzero" bson:"sources,omitempty"`
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
	Type      MessageType `json:"type" bson:"type"`
}

// normalize restores the analysis shape of an assistant message whose
// freeform analysis came back from storage as plain text.
func (m *Message) normalize() {
	if m.Type == MessageTypeAssistant && m.Content.Analysis == nil {
		m.Content = AnalysisContent(Analysis{RawText: m.Content.Text})
	}
	m.ensureSources()
}

func (m *Message) ensureSources() {
	if m.Type == MessageTypeAssistant && m.Sources == nil {
		m.Sources = []string{}
	}
}

// AnalysisRecord is an analysis made outside of any chat.
type AnalysisRecord struct {
	ID        string    `json:"id" bson:"_id"`
	Statement string    `json:"statement" bson:"statement"`
	Analysis  Analysis  `json:"analysis" bson:"analysis"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	UserID    string    `json:"userId,omitempty" bson:"userId,omitempty"`
}

// URLLog records the sources found for a search query.
type URLLog struct {
	ID        string    `json:"id" bson:"_id"`
	Query     string    `json:"query" bson:"query"`
	URLs      []string  `json:"urls" bson:"urls"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}
