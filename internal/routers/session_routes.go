package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"peerprep/interview/internal/handlers"
)

func SessionRoutes(router *chi.Mux, sessionHandler *handlers.SessionHandler, protect func(http.Handler) http.Handler) {
	router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(protect)

		r.Post("/", sessionHandler.CreateSessionHandler)                   // Create session
		r.Get("/active", sessionHandler.ListActiveHandler)                 // Active sessions
		r.Get("/my-recent", sessionHandler.ListMyRecentHandler)            // Caller's completed sessions
		r.Get("/host-active", sessionHandler.ListHostActiveHandler)        // Caller's hosted active sessions
		r.Post("/invite/{token}/join", sessionHandler.RedeemInviteHandler) // Join by invite link
		r.Get("/{id}", sessionHandler.GetSessionHandler)                   // Get session by ID
		r.Post("/{id}/join", sessionHandler.JoinSessionHandler)            // Join session
		r.Post("/{id}/end", sessionHandler.EndSessionHandler)              // End session (host only)
		r.Post("/{id}/invite", sessionHandler.CreateInviteHandler)         // Issue invite (host only)
	})
}

func ChatRoutes(router *chi.Mux, chatHandler *handlers.ChatHandler, protect func(http.Handler) http.Handler) {
	router.Route("/api/v1/chat", func(r chi.Router) {
		r.Use(protect)
		r.Get("/token", chatHandler.TokenHandler)
	})
}
