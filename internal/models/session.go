package models

import (
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MaxParticipants is the number of candidates a session admits besides its host.
const MaxParticipants = 1

// SessionRetention is how long a session document is kept after creation.
const SessionRetention = 15 * 24 * time.Hour

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// NormalizeDifficulty maps free-form input onto the difficulty labels.
// Known labels match case-insensitively; anything else is title-cased.
func NormalizeDifficulty(raw string) Difficulty {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DifficultyEasy
	}
	switch strings.ToLower(trimmed) {
	case "easy":
		return DifficultyEasy
	case "medium":
		return DifficultyMedium
	case "hard":
		return DifficultyHard
	}
	first, size := utf8.DecodeRuneInString(trimmed)
	return Difficulty(string(unicode.ToUpper(first)) + strings.ToLower(trimmed[size:]))
}

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// Session is the persisted interview session document.
type Session struct {
	ID             string        `bson:"_id" json:"id"`
	Problem        string        `bson:"problem" json:"problem"`
	Difficulty     Difficulty    `bson:"difficulty" json:"difficulty"`
	Host           string        `bson:"host" json:"host"`
	Participants   []string      `bson:"participants" json:"participants"`
	Status         SessionStatus `bson:"status" json:"status"`
	ChannelID      string        `bson:"channelId" json:"channelId"`
	AccessCodeHash string        `bson:"accessCodeHash,omitempty" json:"-"`
	ChannelClosed  bool          `bson:"channelClosed" json:"-"`
	CreatedAt      time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time     `bson:"updatedAt" json:"updatedAt"`
	EndedAt        *time.Time    `bson:"endedAt,omitempty" json:"endedAt,omitempty"`
}

func (s *Session) HasParticipant(principal string) bool {
	return slices.Contains(s.Participants, principal)
}

func (s *Session) IsFull() bool {
	return len(s.Participants) >= MaxParticipants
}

func (s *Session) IsProtected() bool {
	return strings.TrimSpace(s.AccessCodeHash) != ""
}

func (s *Session) IsCompleted() bool {
	return s.Status == StatusCompleted
}

// Clone returns a deep copy so stores can hand out sessions without sharing slices.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Participants = slices.Clone(s.Participants)
	if s.EndedAt != nil {
		ended := *s.EndedAt
		c.EndedAt = &ended
	}
	return &c
}

// SessionView is what every read and write operation returns to callers.
// The access code hash never leaves the service.
type SessionView struct {
	ID           string        `json:"id"`
	Problem      string        `json:"problem"`
	Difficulty   Difficulty    `json:"difficulty"`
	Host         string        `json:"host"`
	Participants []string      `json:"participants"`
	Status       SessionStatus `json:"status"`
	ChannelID    string        `json:"channelId"`
	IsProtected  bool          `json:"isProtected"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	EndedAt      *time.Time    `json:"endedAt,omitempty"`

	// filled from principal storage when it is available
	HostProfile         *Profile  `json:"hostProfile,omitempty"`
	ParticipantProfiles []Profile `json:"participantProfiles,omitempty"`
}

// WithProfiles attaches the known profiles of the host and participants.
// Principals missing from profiles are left out.
func (v SessionView) WithProfiles(profiles map[string]Profile) SessionView {
	if p, ok := profiles[v.Host]; ok {
		v.HostProfile = &p
	}
	v.ParticipantProfiles = nil
	for _, id := range v.Participants {
		if p, ok := profiles[id]; ok {
			v.ParticipantProfiles = append(v.ParticipantProfiles, p)
		}
	}
	return v
}

func (s *Session) View() SessionView {
	participants := slices.Clone(s.Participants)
	if participants == nil {
		participants = []string{}
	}
	return SessionView{
		ID:           s.ID,
		Problem:      s.Problem,
		Difficulty:   s.Difficulty,
		Host:         s.Host,
		Participants: participants,
		Status:       s.Status,
		ChannelID:    s.ChannelID,
		IsProtected:  s.IsProtected(),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		EndedAt:      s.EndedAt,
	}
}

func Views(sessions []Session) []SessionView {
	out := make([]SessionView, 0, len(sessions))
	for i := range sessions {
		out = append(out, sessions[i].View())
	}
	return out
}

func (v SessionView) HasParticipant(principal string) bool {
	return slices.Contains(v.Participants, principal)
}

func (v SessionView) IsFull() bool {
	return len(v.Participants) >= MaxParticipants
}

func (v SessionView) IsCompleted() bool {
	return v.Status == StatusCompleted
}
