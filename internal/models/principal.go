package models

import (
	"gorm.io/gorm"
)

// Principal is the local record of an authenticated actor, provisioned the
// first time the identity provider presents it.
type Principal struct {
	gorm.Model
	PrincipalID string `gorm:"uniqueIndex;not null" json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
}

// Profile is the public part of a principal, attached to session views.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func (p *Principal) Profile() Profile {
	return Profile{ID: p.PrincipalID, Name: p.Name, Email: p.Email}
}
