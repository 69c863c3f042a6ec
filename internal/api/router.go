package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"veritas.app/backend/internal/logging"
)

func NewRouter(apiHandler *APIHandler, corsOrigins []string, logger logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/analyze", apiHandler.AnalyzeHandler)

	r.Route("/chats", func(r chi.Router) {
		r.Get("/", apiHandler.ListChatsHandler)
		r.Post("/", apiHandler.CreateChatHandler)

		r.Route("/{chatID}", func(r chi.Router) {
			r.Get("/", apiHandler.GetChatHandler)
			r.Put("/", apiHandler.RenameChatHandler)
			r.Delete("/", apiHandler.DeleteChatHandler)
			r.Get("/messages", apiHandler.ListMessagesHandler)
		})
	})

	return r
}
