package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/contactvault/contactvault/internal/domain"
	pw "github.com/contactvault/contactvault/internal/password"
	"github.com/contactvault/contactvault/internal/repository"
	"github.com/contactvault/contactvault/internal/roles"
	"github.com/contactvault/contactvault/internal/storage"
)

const birthdayWindowDays = 7

// ContactService covers directory reads, writes, searches, and avatars.
type ContactService struct {
	contacts  repository.ContactRepository
	avatars   storage.AvatarStore
	snowflake *snowflake.Node
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewContactService wires dependencies.
func NewContactService(contacts repository.ContactRepository, avatars storage.AvatarStore, node *snowflake.Node, logger *zap.Logger) *ContactService {
	return &ContactService{
		contacts:  contacts,
		avatars:   avatars,
		snowflake: node,
		logger:    logger,
		tracer:    otel.Tracer("github.com/contactvault/contactvault/internal/service"),
	}
}

// List returns every contact.
func (s *ContactService) List(ctx context.Context) ([]domain.Contact, error) {
	ctx, span := s.span(ctx, "ContactService.List")
	defer span.End()

	contacts, err := s.contacts.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}

// Get returns a contact by ID.
func (s *ContactService) Get(ctx context.Context, id int64) (domain.Contact, error) {
	ctx, span := s.span(ctx, "ContactService.Get")
	defer span.End()

	contact, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Contact{}, newError("not_found", "Not found", 404)
		}
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("get contact: %w", err)
	}
	return contact, nil
}

// Create adds a directory entry. Unlike signup it sends no confirmation
// email; the created entry starts unconfirmed with the user role.
func (s *ContactService) Create(ctx context.Context, input ContactInput) (domain.Contact, error) {
	ctx, span := s.span(ctx, "ContactService.Create")
	defer span.End()

	email := normalizeEmail(input.Email)
	if _, err := s.contacts.GetByEmail(ctx, email); err == nil {
		return domain.Contact{}, newError("account_exists", "Such mail already registered", 409)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("lookup contact: %w", err)
	}

	hash, err := pw.Hash(input.Password)
	if err != nil {
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("hash password: %w", err)
	}

	contact := domain.Contact{
		ID:           s.snowflake.Generate().Int64(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        email,
		Phone:        input.Phone,
		Birthday:     input.Birthday,
		PasswordHash: hash,
		AvatarURL:    gravatarURL(email),
		Role:         domain.RoleUser,
	}

	created, err := s.contacts.Create(ctx, contact)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Contact{}, newError("account_exists", "Such mail already registered", 409)
		}
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("create contact: %w", err)
	}
	return created, nil
}

// Update replaces the mutable fields of a contact.
func (s *ContactService) Update(ctx context.Context, id int64, input ContactInput) (domain.Contact, error) {
	ctx, span := s.span(ctx, "ContactService.Update")
	defer span.End()

	contact, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Contact{}, newError("not_found", "Not found", 404)
		}
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("get contact: %w", err)
	}

	contact.FirstName = input.FirstName
	contact.LastName = input.LastName
	contact.Email = normalizeEmail(input.Email)
	contact.Phone = input.Phone
	contact.Birthday = input.Birthday

	updated, err := s.contacts.Update(ctx, contact)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Contact{}, newError("not_found", "Not found", 404)
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Contact{}, newError("account_exists", "Such mail already registered", 409)
		}
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("update contact: %w", err)
	}
	return updated, nil
}

// ChangeRole assigns a new role to a contact.
func (s *ContactService) ChangeRole(ctx context.Context, id int64, role string) (domain.Contact, error) {
	ctx, span := s.span(ctx, "ContactService.ChangeRole")
	defer span.End()

	parsed, err := roles.Parse(role)
	if err != nil {
		return domain.Contact{}, newError("invalid_request", "Unknown role", 400)
	}

	updated, err := s.contacts.ChangeRole(ctx, id, parsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Contact{}, newError("not_found", "Not found", 404)
		}
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("change role: %w", err)
	}
	return updated, nil
}

// Delete removes a contact.
func (s *ContactService) Delete(ctx context.Context, id int64) error {
	ctx, span := s.span(ctx, "ContactService.Delete")
	defer span.End()

	if err := s.contacts.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newError("not_found", "Not found", 404)
		}
		span.RecordError(err)
		return fmt.Errorf("delete contact: %w", err)
	}
	return nil
}

// SearchFirstName finds contacts by first name prefix.
func (s *ContactService) SearchFirstName(ctx context.Context, inquiry string) ([]domain.Contact, error) {
	ctx, span := s.span(ctx, "ContactService.SearchFirstName")
	defer span.End()

	contacts, err := s.contacts.SearchFirstName(ctx, inquiry)
	return s.searchResult(span, contacts, err)
}

// SearchLastName finds contacts by last name prefix.
func (s *ContactService) SearchLastName(ctx context.Context, inquiry string) ([]domain.Contact, error) {
	ctx, span := s.span(ctx, "ContactService.SearchLastName")
	defer span.End()

	contacts, err := s.contacts.SearchLastName(ctx, inquiry)
	return s.searchResult(span, contacts, err)
}

// SearchEmail finds the contact with the exact email.
func (s *ContactService) SearchEmail(ctx context.Context, inquiry string) (domain.Contact, error) {
	ctx, span := s.span(ctx, "ContactService.SearchEmail")
	defer span.End()

	contact, err := s.contacts.GetByEmail(ctx, normalizeEmail(inquiry))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Contact{}, newError("not_found", "Not found", 404)
		}
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("search email: %w", err)
	}
	return contact, nil
}

// Search finds contacts whose email contains the inquiry.
func (s *ContactService) Search(ctx context.Context, inquiry string) ([]domain.Contact, error) {
	ctx, span := s.span(ctx, "ContactService.Search")
	defer span.End()

	contacts, err := s.contacts.SearchEmailLike(ctx, inquiry)
	return s.searchResult(span, contacts, err)
}

// UpcomingBirthdays lists contacts whose birthday falls in the next week.
func (s *ContactService) UpcomingBirthdays(ctx context.Context) ([]domain.Contact, error) {
	ctx, span := s.span(ctx, "ContactService.UpcomingBirthdays")
	defer span.End()

	contacts, err := s.contacts.UpcomingBirthdays(ctx, birthdayWindowDays)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("upcoming birthdays: %w", err)
	}
	return contacts, nil
}

// UpdateAvatar uploads the image and stores the resulting public URL on the
// caller's own contact.
func (s *ContactService) UpdateAvatar(ctx context.Context, contact domain.Contact, filename, contentType string, data []byte) (domain.Contact, error) {
	ctx, span := s.span(ctx, "ContactService.UpdateAvatar")
	defer span.End()

	ext := strings.ToLower(filepath.Ext(filename))
	key := fmt.Sprintf("avatars/%d-%d%s", contact.ID, time.Now().Unix(), ext)
	url, err := s.avatars.Upload(ctx, key, contentType, data)
	if err != nil {
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("upload avatar: %w", err)
	}

	updated, err := s.contacts.UpdateAvatar(ctx, contact.ID, url)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Contact{}, newError("not_found", "Not found", 404)
		}
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("store avatar url: %w", err)
	}
	return updated, nil
}

func (s *ContactService) searchResult(span trace.Span, contacts []domain.Contact, err error) ([]domain.Contact, error) {
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	if len(contacts) == 0 {
		return nil, newError("not_found", "Not found", 404)
	}
	return contacts, nil
}

func (s *ContactService) span(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}
