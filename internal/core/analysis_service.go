package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"veritas.app/backend/internal/logging"
	"veritas.app/backend/internal/store"
)

const (
	AnalysisPromptVersion = "v2"
	DefaultLLMTimeout     = 30 * time.Second
	PersistTimeout        = 10 * time.Second
)

const analysisPromptV2 = `
Analyze the following statement in a structured format.

Statement: %s

Please provide your analysis in the following format:

Main Thesis: [Identify the central argument or main point]

Key Claims: [List the key claims made in the statement. For each claim, state explicitly whether it is accurate or inaccurate]

Evidence Quality: [Evaluate the quality, relevance, and sufficiency of evidence presented]

Potential Biases: [Identify any potential biases, assumptions, or perspectives that might influence the statement]

Counterarguments: [Provide potential counterarguments or alternative perspectives not addressed in the statement]

For each section, provide a thorough analysis with specific examples from the text.
`

// AnalyzeBudget is the longest Analyze can run: the model call, every
// attempt on both the primary and the fallback search provider, and
// persistence. Non-positive inputs take the same defaults the services use.
func AnalyzeBudget(llmTimeout, searchTimeout time.Duration, searchAttempts int) time.Duration {
	if llmTimeout <= 0 {
		llmTimeout = DefaultLLMTimeout
	}
	if searchTimeout <= 0 {
		searchTimeout = DefaultSearchTimeout
	}
	if searchAttempts < 1 {
		searchAttempts = DefaultSearchAttempts
	}
	search := time.Duration(2*searchAttempts) * searchTimeout
	return llmTimeout + search + PersistTimeout
}

// BuildAnalysisPrompt renders the current prompt template.
func BuildAnalysisPrompt(statement string) string {
	return fmt.Sprintf(analysisPromptV2, statement)
}

// Retriever finds corroborating sources for a statement.
type Retriever interface {
	Retrieve(ctx context.Context, query string) []string
}

type AnalyzeRequest struct {
	Statement string `json:"statement"`
	UserID    string `json:"userId,omitempty"`
	ChatID    string `json:"chatId,omitempty"`
}

type AnalyzeResult struct {
	Statement string         `json:"statement"`
	Analysis  store.Analysis `json:"analysis"`
	Sources   []string       `json:"sources"`
	Flagged   bool           `json:"flagged"`
}

// AnalysisService runs the fact-check pipeline: model call, section
// parsing, inaccuracy detection, optional evidence lookup and persistence.
type AnalysisService struct {
	analyzer   TextAnalyzer
	retriever  Retriever
	dbStore    store.DocumentStore
	llmTimeout time.Duration
	log        *logrus.Entry
}

// NewAnalysisService accepts a nil store, in which case nothing is
// persisted.
func NewAnalysisService(analyzer TextAnalyzer, retriever Retriever, db store.DocumentStore, llmTimeout time.Duration, logger logrus.FieldLogger) *AnalysisService {
	if llmTimeout <= 0 {
		llmTimeout = DefaultLLMTimeout
	}
	return &AnalysisService{
		analyzer:   analyzer,
		retriever:  retriever,
		dbStore:    db,
		llmTimeout: llmTimeout,
		log:        logging.Component(logger, "analysis"),
	}
}

// Analyze fact-checks a statement. Only a model failure is returned as an
// error; search and persistence problems are logged and degrade the result.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	if strings.TrimSpace(req.Statement) == "" {
		return nil, invalid("Statement is required")
	}
	// In-flight model and search calls run to completion or timeout even
	// if the client goes away.
	ctx = context.WithoutCancel(ctx)
	log := s.log.WithFields(logrus.Fields{"user_id": req.UserID, "chat_id": req.ChatID})

	raw, err := s.generate(ctx, req.Statement)
	if err != nil {
		log.WithError(err).Error("analysis model call failed")
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	analysis := NewAnalysis(raw)
	log.WithFields(logrus.Fields{
		"structured": analysis.IsStructured(),
		"sections":   len(analysis.Sections),
		"flagged":    analysis.Flagged,
	}).Info("statement analyzed")

	sources := []string{}
	if analysis.Flagged && s.retriever != nil {
		sources = s.retriever.Retrieve(ctx, req.Statement)
	}

	s.persist(ctx, log, req, analysis, sources)

	return &AnalyzeResult{
		Statement: req.Statement,
		Analysis:  analysis,
		Sources:   sources,
		Flagged:   analysis.Flagged,
	}, nil
}

func (s *AnalysisService) generate(ctx context.Context, statement string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()
	return s.analyzer.Generate(ctx, BuildAnalysisPrompt(statement))
}

// persist stores the exchange in the chat when both IDs are known, and as
// a standalone record otherwise. The result has already been computed, so
// failures here are logged as data loss and swallowed.
func (s *AnalysisService) persist(ctx context.Context, log *logrus.Entry, req AnalyzeRequest, analysis store.Analysis, sources []string) {
	if s.dbStore == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, PersistTimeout)
	defer cancel()

	dataLoss := func(err error, what string) {
		log.WithError(err).WithField("data_loss_risk", true).Error("failed to persist " + what)
	}

	if req.UserID == "" || req.ChatID == "" {
		rec := &store.AnalysisRecord{Statement: req.Statement, Analysis: analysis, UserID: req.UserID}
		if err := s.dbStore.InsertAnalysisRecord(ctx, rec); err != nil {
			dataLoss(err, "analysis record")
		}
		return
	}

	userMsg := &store.Message{
		ChatID:  req.ChatID,
		UserID:  req.UserID,
		Type:    store.MessageTypeUser,
		Content: store.TextContent(req.Statement),
	}
	if err := s.dbStore.AppendMessage(ctx, userMsg); err != nil {
		// Without the user turn the reply would have nothing to answer.
		dataLoss(err, "user message")
		return
	}

	assistantMsg := &store.Message{
		ChatID:  req.ChatID,
		UserID:  req.UserID,
		Type:    store.MessageTypeAssistant,
		Content: store.AnalysisContent(analysis),
		Sources: sources,
	}
	if err := s.dbStore.AppendMessage(ctx, assistantMsg); err != nil {
		dataLoss(err, "assistant message")
		return
	}

	if err := s.dbStore.TouchChat(ctx, req.ChatID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("messages appended to a chat that does not exist")
			return
		}
		dataLoss(err, "chat timestamp")
	}
}
