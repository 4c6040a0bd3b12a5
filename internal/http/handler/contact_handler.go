package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/contactvault/contactvault/internal/http/middleware"
	"github.com/contactvault/contactvault/internal/service"
)

const maxAvatarBytes = 5 << 20

// ContactHandler exposes the directory endpoints.
type ContactHandler struct {
	Contacts *service.ContactService
}

// NewContactHandler creates the handler set.
func NewContactHandler(contacts *service.ContactService) *ContactHandler {
	return &ContactHandler{Contacts: contacts}
}

// List returns every contact.
func (h *ContactHandler) List(c *gin.Context) {
	contacts, err := h.Contacts.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewContactViews(contacts))
}

// Get returns one contact by ID.
func (h *ContactHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	contact, err := h.Contacts.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewContactView(contact))
}

// Create adds a directory entry.
func (h *ContactHandler) Create(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid contact payload."})
		return
	}
	input, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Birthday must be YYYY-MM-DD."})
		return
	}

	contact, err := h.Contacts.Create(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"contact": service.NewContactView(contact),
		"detail":  "Contact was created",
	})
}

// Update replaces a contact's fields.
func (h *ContactHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid contact payload."})
		return
	}
	input, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Birthday must be YYYY-MM-DD."})
		return
	}

	contact, err := h.Contacts.Update(c.Request.Context(), id, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewContactView(contact))
}

// ChangeRole assigns a contact a new role.
func (h *ContactHandler) ChangeRole(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Role string `json:"roles" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "roles field is required."})
		return
	}

	contact, err := h.Contacts.ChangeRole(c.Request.Context(), id, req.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewContactView(contact))
}

// Delete removes a contact.
func (h *ContactHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Contacts.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SearchFirstName finds contacts by first name.
func (h *ContactHandler) SearchFirstName(c *gin.Context) {
	contacts, err := h.Contacts.SearchFirstName(c.Request.Context(), c.Param("inquiry"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewContactViews(contacts))
}

// SearchLastName finds contacts by last name.
func (h *ContactHandler) SearchLastName(c *gin.Context) {
	contacts, err := h.Contacts.SearchLastName(c.Request.Context(), c.Param("inquiry"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewContactViews(contacts))
}

// SearchEmail finds the contact with the exact email.
func (h *ContactHandler) SearchEmail(c *gin.Context) {
	contact, err := h.Contacts.SearchEmail(c.Request.Context(), c.Param("inquiry"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewContactView(contact))
}

// Search finds contacts whose email contains the inquiry.
func (h *ContactHandler) Search(c *gin.Context) {
	contacts, err := h.Contacts.Search(c.Request.Context(), c.Param("inquiry"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewContactViews(contacts))
}

// Me returns the authenticated contact.
func (h *ContactHandler) Me(c *gin.Context) {
	contact, ok := middleware.GetCurrentContact(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid access token."})
		return
	}
	c.JSON(http.StatusOK, service.NewContactView(contact))
}

// UpdateAvatar uploads a new avatar image for the caller.
func (h *ContactHandler) UpdateAvatar(c *gin.Context) {
	contact, ok := middleware.GetCurrentContact(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid access token."})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "file form field is required."})
		return
	}
	if fileHeader.Size > maxAvatarBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Avatar must be 5MB or smaller."})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAvatarBytes+1))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	updated, err := h.Contacts.UpdateAvatar(c.Request.Context(), contact, fileHeader.Filename, contentType, data)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewContactView(updated))
}

// Birthdays lists contacts with a birthday in the next 7 days.
func (h *ContactHandler) Birthdays(c *gin.Context) {
	contacts, err := h.Contacts.UpcomingBirthdays(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewContactViews(contacts))
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Contact ID must be a positive integer."})
		return 0, false
	}
	return id, true
}
