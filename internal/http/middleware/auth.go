package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/contactvault/contactvault/internal/domain"
	"github.com/contactvault/contactvault/internal/repository"
	"github.com/contactvault/contactvault/internal/roles"
	"github.com/contactvault/contactvault/internal/token"
)

const currentContactKey = "currentContact"

// Auth validates Authorization headers and attaches the authenticated contact.
type Auth struct {
	Tokens   *token.Service
	Contacts repository.ContactRepository
}

// RequireAuth ensures the request carries a valid bearer access token and
// that the subject still exists.
func (m *Auth) RequireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authorization header required."})
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Bearer token required."})
		return
	}

	email, err := m.Tokens.DecodeAccessToken(parts[1])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid access token."})
		return
	}

	contact, err := m.Contacts.GetByEmail(c.Request.Context(), email)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid access token."})
		return
	}

	c.Set(currentContactKey, contact)
	c.Next()
}

// RequireRoles gates a route to contacts whose role the checker permits.
// It must run after RequireAuth.
func (m *Auth) RequireRoles(checker *roles.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		contact, ok := GetCurrentContact(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid access token."})
			return
		}
		if !checker.Permits(contact.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "operation_forbidden", "error_description": "Operation forbidden."})
			return
		}
		c.Next()
	}
}

// GetCurrentContact exposes the authenticated contact to handlers.
func GetCurrentContact(c *gin.Context) (domain.Contact, bool) {
	value, ok := c.Get(currentContactKey)
	if !ok {
		return domain.Contact{}, false
	}
	contact, ok := value.(domain.Contact)
	return contact, ok
}
