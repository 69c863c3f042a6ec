package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"veritas.app/backend/internal/core"
	"veritas.app/backend/internal/logging"
	"veritas.app/backend/internal/store"
)

type APIHandler struct {
	analysisService *core.AnalysisService
	chatService     *core.ChatService
	log             *logrus.Entry
}

func NewAPIHandler(as *core.AnalysisService, cs *core.ChatService, logger logrus.FieldLogger) *APIHandler {
	return &APIHandler{
		analysisService: as,
		chatService:     cs,
		log:             logging.Component(logger, "api"),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto status codes. Anything unrecognised
// is logged and reported with the given fallback message.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Chat not found"})
	case errors.Is(err, core.ErrUpstream):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		h.log.WithError(err).WithField("path", r.URL.Path).Error(fallback)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: fallback})
	}
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *APIHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req core.AnalyzeRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	res, err := h.analysisService.Analyze(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err, "Failed to analyze statement")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatService.GetChats(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		h.writeError(w, r, err, "Failed to list chats")
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

type CreateChatRequest struct {
	UserID string `json:"userId"`
	Title  string `json:"title,omitempty"`
}

func (h *APIHandler) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	chat, err := h.chatService.CreateChat(r.Context(), req.UserID, req.Title)
	if err != nil {
		h.writeError(w, r, err, "Failed to create chat")
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (h *APIHandler) GetChatHandler(w http.ResponseWriter, r *http.Request) {
	chat, err := h.chatService.GetChat(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		h.writeError(w, r, err, "Failed to get chat")
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

type RenameChatRequest struct {
	Title string `json:"title"`
}

func (h *APIHandler) RenameChatHandler(w http.ResponseWriter, r *http.Request) {
	var req RenameChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	if err := h.chatService.RenameChat(r.Context(), chi.URLParam(r, "chatID"), req.Title); err != nil {
		h.writeError(w, r, err, "Failed to update chat")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *APIHandler) DeleteChatHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.DeleteChat(r.Context(), chi.URLParam(r, "chatID")); err != nil {
		h.writeError(w, r, err, "Failed to delete chat")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *APIHandler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatService.GetMessages(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		h.writeError(w, r, err, "Failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}
