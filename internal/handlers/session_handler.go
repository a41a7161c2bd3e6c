package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"peerprep/interview/internal/auth"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/sessions"
	"peerprep/interview/internal/utils"
)

type SessionService interface {
	Create(ctx context.Context, in sessions.CreateInput) (models.SessionView, error)
	Join(ctx context.Context, id, principal, accessCode string) (models.SessionView, error)
	End(ctx context.Context, id, principal string) (models.SessionView, error)
	Get(ctx context.Context, id string) (models.SessionView, error)
	ListActive(ctx context.Context) ([]models.SessionView, error)
	ListMyRecent(ctx context.Context, principal string) ([]models.SessionView, error)
	ListHostActive(ctx context.Context, host string) ([]models.SessionView, error)
}

type InviteService interface {
	Issue(ctx context.Context, sessionID, host string) (models.IssuedInvite, error)
	Redeem(ctx context.Context, token, principal string) (models.SessionView, error)
}

type SessionHandler struct {
	sessions SessionService
	invites  InviteService
	logger   *zap.Logger
}

func NewSessionHandler(s SessionService, i InviteService, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{sessions: s, invites: i, logger: logger}
}

func (handler *SessionHandler) CreateSessionHandler(writer http.ResponseWriter, request *http.Request) {
	principal, ok := handler.principal(writer, request)
	if !ok {
		return
	}

	var req models.CreateSessionRequest
	if err := json.NewDecoder(request.Body).Decode(&req); err != nil {
		utils.JSONError(writer, http.StatusBadRequest, "invalid_request", "Invalid request payload")
		return
	}

	view, err := handler.sessions.Create(request.Context(), sessions.CreateInput{
		Problem:    req.Problem,
		Difficulty: req.Difficulty,
		Host:       principal.ID,
		AccessCode: req.AccessCode,
	})
	if err != nil {
		writeError(writer, handler.logger, err, "Failed to create session")
		return
	}

	writer.Header().Set("Location", "/api/v1/sessions/"+view.ID)
	utils.JSON(writer, http.StatusCreated, models.SessionResponse{Session: view})
}

func (handler *SessionHandler) ListActiveHandler(writer http.ResponseWriter, request *http.Request) {
	list, err := handler.sessions.ListActive(request.Context())
	if err != nil {
		writeError(writer, handler.logger, err, "Failed to fetch active sessions")
		return
	}
	utils.JSON(writer, http.StatusOK, models.SessionsResponse{Sessions: list})
}

func (handler *SessionHandler) ListMyRecentHandler(writer http.ResponseWriter, request *http.Request) {
	principal, ok := handler.principal(writer, request)
	if !ok {
		return
	}
	list, err := handler.sessions.ListMyRecent(request.Context(), principal.ID)
	if err != nil {
		writeError(writer, handler.logger, err, "Failed to fetch recent sessions")
		return
	}
	utils.JSON(writer, http.StatusOK, models.SessionsResponse{Sessions: list})
}

func (handler *SessionHandler) ListHostActiveHandler(writer http.ResponseWriter, request *http.Request) {
	principal, ok := handler.principal(writer, request)
	if !ok {
		return
	}
	list, err := handler.sessions.ListHostActive(request.Context(), principal.ID)
	if err != nil {
		writeError(writer, handler.logger, err, "Failed to fetch host sessions")
		return
	}
	utils.JSON(writer, http.StatusOK, models.SessionsResponse{Sessions: list})
}

func (handler *SessionHandler) GetSessionHandler(writer http.ResponseWriter, request *http.Request) {
	view, err := handler.sessions.Get(request.Context(), chi.URLParam(request, "id"))
	if err != nil {
		writeError(writer, handler.logger, err, "Failed to fetch session")
		return
	}
	utils.JSON(writer, http.StatusOK, models.SessionResponse{Session: view})
}

// JoinSessionHandler accepts an optional {"accessCode": "..."} body.
func (handler *SessionHandler) JoinSessionHandler(writer http.ResponseWriter, request *http.Request) {
	principal, ok := handler.principal(writer, request)
	if !ok {
		return
	}

	var req models.JoinSessionRequest
	if err := json.NewDecoder(request.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.JSONError(writer, http.StatusBadRequest, "invalid_request", "Invalid request payload")
		return
	}

	view, err := handler.sessions.Join(request.Context(), chi.URLParam(request, "id"), principal.ID, req.AccessCode)
	if err != nil {
		writeError(writer, handler.logger, err, "Failed to join session")
		return
	}
	utils.JSON(writer, http.StatusOK, models.SessionResponse{Session: view})
}

func (handler *SessionHandler) EndSessionHandler(writer http.ResponseWriter, request *http.Request) {
	principal, ok := handler.principal(writer, request)
	if !ok {
		return
	}
	view, err := handler.sessions.End(request.Context(), chi.URLParam(request, "id"), principal.ID)
	if err != nil {
		writeError(writer, handler.logger, err, "Failed to end session")
		return
	}
	utils.JSON(writer, http.StatusOK, models.SessionResponse{Session: view, Message: "Session ended successfully"})
}

func (handler *SessionHandler) CreateInviteHandler(writer http.ResponseWriter, request *http.Request) {
	principal, ok := handler.principal(writer, request)
	if !ok {
		return
	}
	invite, err := handler.invites.Issue(request.Context(), chi.URLParam(request, "id"), principal.ID)
	if err != nil {
		writeError(writer, handler.logger, err, "Failed to create invite token")
		return
	}
	utils.JSON(writer, http.StatusCreated, invite)
}

func (handler *SessionHandler) RedeemInviteHandler(writer http.ResponseWriter, request *http.Request) {
	principal, ok := handler.principal(writer, request)
	if !ok {
		return
	}
	view, err := handler.invites.Redeem(request.Context(), chi.URLParam(request, "token"), principal.ID)
	if err != nil {
		writeError(writer, handler.logger, err, "Failed to join with invite")
		return
	}
	utils.JSON(writer, http.StatusOK, models.SessionResponse{Session: view})
}

func (handler *SessionHandler) principal(writer http.ResponseWriter, request *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFrom(request.Context())
	if !ok {
		utils.JSONError(writer, http.StatusUnauthorized, "unauthorized", "Unauthorized - missing or invalid token")
	}
	return p, ok
}
