package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"peerprep/interview/internal/auth"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/utils"
)

type ChatTokenIssuer interface {
	UserToken(userID string) (string, error)
}

type ChatHandler struct {
	issuer ChatTokenIssuer
	logger *zap.Logger
}

func NewChatHandler(issuer ChatTokenIssuer, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{issuer: issuer, logger: logger}
}

// TokenHandler returns a chat client token for the caller.
func (handler *ChatHandler) TokenHandler(writer http.ResponseWriter, request *http.Request) {
	principal, ok := auth.PrincipalFrom(request.Context())
	if !ok {
		utils.JSONError(writer, http.StatusUnauthorized, "unauthorized", "Unauthorized - missing or invalid token")
		return
	}
	token, err := handler.issuer.UserToken(principal.ID)
	if err != nil {
		handler.logger.Error("failed to generate chat token", zap.String("principal", principal.ID), zap.Error(err))
		utils.JSONError(writer, http.StatusInternalServerError, "internal_error", "Failed to generate chat token")
		return
	}
	utils.JSON(writer, http.StatusOK, models.ChatTokenResponse{
		Token:    token,
		UserID:   principal.ID,
		UserName: principal.Name,
	})
}
