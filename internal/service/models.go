package service

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/contactvault/contactvault/internal/domain"
)

// TokenResponse matches OAuth-style token responses.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// ContactInput carries the fields a caller supplies when creating or
// updating a contact.
type ContactInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     int64
	Birthday  time.Time
	Password  string
}

// ContactView is the contact representation returned to clients. The
// password hash and token columns never leave the service.
type ContactView struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     int64     `json:"phone"`
	Birthday  string    `json:"birthday"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
}

// NewContactView projects a contact onto its client representation.
func NewContactView(c domain.Contact) ContactView {
	return ContactView{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		Birthday:  c.Birthday.Format("2006-01-02"),
		AvatarURL: c.AvatarURL,
		Role:      string(c.Role),
		Confirmed: c.Confirmed,
		CreatedAt: c.CreatedAt,
	}
}

// NewContactViews projects a slice of contacts.
func NewContactViews(contacts []domain.Contact) []ContactView {
	views := make([]ContactView, 0, len(contacts))
	for _, c := range contacts {
		views = append(views, NewContactView(c))
	}
	return views
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// gravatarURL derives the default avatar for a new contact.
func gravatarURL(email string) string {
	sum := md5.Sum([]byte(normalizeEmail(email)))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:])
}
