package models

// uniform error payload
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SessionResponse struct {
	Session SessionView `json:"session"`
	Message string      `json:"message,omitempty"`
}

type SessionsResponse struct {
	Sessions []SessionView `json:"sessions"`
}

type CreateSessionRequest struct {
	Problem    string `json:"problem"`
	Difficulty string `json:"difficulty"`
	AccessCode string `json:"accessCode,omitempty"`
}

type JoinSessionRequest struct {
	AccessCode string `json:"accessCode,omitempty"`
}

type ChatTokenResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
}
