package service_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/contactvault/contactvault/internal/domain"
	"github.com/contactvault/contactvault/internal/repository"
)

type memoryContactRepo struct {
	mu       sync.Mutex
	contacts map[int64]domain.Contact
}

func newMemoryContactRepo() *memoryContactRepo {
	return &memoryContactRepo{contacts: make(map[int64]domain.Contact)}
}

func (m *memoryContactRepo) GetByID(ctx context.Context, id int64) (domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contact, ok := m.contacts[id]
	if !ok {
		return domain.Contact{}, pgx.ErrNoRows
	}
	return contact, nil
}

func (m *memoryContactRepo) GetByEmail(ctx context.Context, email string) (domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, contact := range m.contacts {
		if contact.Email == email {
			return contact, nil
		}
	}
	return domain.Contact{}, pgx.ErrNoRows
}

func (m *memoryContactRepo) List(ctx context.Context) ([]domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Contact, 0, len(m.contacts))
	for _, contact := range m.contacts {
		out = append(out, contact)
	}
	return out, nil
}

func (m *memoryContactRepo) Create(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.contacts {
		if existing.Email == contact.Email || existing.Phone == contact.Phone {
			return domain.Contact{}, repository.ErrDuplicate
		}
	}
	if contact.Role == "" {
		contact.Role = domain.RoleUser
	}
	contact.CreatedAt = time.Now().UTC()
	m.contacts[contact.ID] = contact
	return contact, nil
}

func (m *memoryContactRepo) Update(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.contacts[contact.ID]
	if !ok {
		return domain.Contact{}, pgx.ErrNoRows
	}
	stored.FirstName = contact.FirstName
	stored.LastName = contact.LastName
	stored.Email = contact.Email
	stored.Phone = contact.Phone
	stored.Birthday = contact.Birthday
	m.contacts[contact.ID] = stored
	return stored, nil
}

func (m *memoryContactRepo) ChangeRole(ctx context.Context, id int64, role domain.Role) (domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contact, ok := m.contacts[id]
	if !ok {
		return domain.Contact{}, pgx.ErrNoRows
	}
	contact.Role = role
	m.contacts[id] = contact
	return contact, nil
}

func (m *memoryContactRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contacts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.contacts, id)
	return nil
}

func (m *memoryContactRepo) SearchFirstName(ctx context.Context, inquiry string) ([]domain.Contact, error) {
	return m.search(func(c domain.Contact) bool {
		return c.FirstName == inquiry
	}), nil
}

func (m *memoryContactRepo) SearchLastName(ctx context.Context, inquiry string) ([]domain.Contact, error) {
	return m.search(func(c domain.Contact) bool {
		return c.LastName == inquiry
	}), nil
}

func (m *memoryContactRepo) SearchEmailLike(ctx context.Context, inquiry string) ([]domain.Contact, error) {
	return m.search(func(c domain.Contact) bool {
		return strings.Contains(strings.ToLower(c.Email), strings.ToLower(inquiry))
	}), nil
}

func (m *memoryContactRepo) UpcomingBirthdays(ctx context.Context, days int) ([]domain.Contact, error) {
	now := time.Now()
	return m.search(func(c domain.Contact) bool {
		next := time.Date(now.Year(), c.Birthday.Month(), c.Birthday.Day(), 0, 0, 0, 0, time.UTC)
		if next.Before(now.Truncate(24 * time.Hour)) {
			next = next.AddDate(1, 0, 0)
		}
		return next.Sub(now) <= time.Duration(days)*24*time.Hour
	}), nil
}

func (m *memoryContactRepo) search(match func(domain.Contact) bool) []domain.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Contact
	for _, contact := range m.contacts {
		if match(contact) {
			out = append(out, contact)
		}
	}
	return out
}

func (m *memoryContactRepo) SetRefreshToken(ctx context.Context, id int64, refreshToken *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	contact, ok := m.contacts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	contact.RefreshToken = refreshToken
	m.contacts[id] = contact
	return nil
}

func (m *memoryContactRepo) RotateRefreshToken(ctx context.Context, id int64, current, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contact, ok := m.contacts[id]
	if !ok {
		return false, nil
	}
	if contact.RefreshToken == nil || *contact.RefreshToken != current {
		return false, nil
	}
	contact.RefreshToken = &next
	m.contacts[id] = contact
	return true, nil
}

func (m *memoryContactRepo) ConfirmEmail(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, contact := range m.contacts {
		if contact.Email == email {
			contact.Confirmed = true
			m.contacts[id] = contact
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memoryContactRepo) SetResetToken(ctx context.Context, id int64, resetToken string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	contact, ok := m.contacts[id]
	if !ok {
		return pgx.ErrNoRows
	}
	contact.ResetPasswordToken = &resetToken
	contact.ResetTokenExpiresAt = &expiresAt
	m.contacts[id] = contact
	return nil
}

func (m *memoryContactRepo) RedeemResetToken(ctx context.Context, id int64, resetToken, passwordHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contact, ok := m.contacts[id]
	if !ok {
		return false, nil
	}
	if contact.ResetPasswordToken == nil || *contact.ResetPasswordToken != resetToken {
		return false, nil
	}
	if contact.ResetTokenExpiresAt == nil || contact.ResetTokenExpiresAt.Before(time.Now()) {
		return false, nil
	}
	contact.PasswordHash = passwordHash
	contact.ResetPasswordToken = nil
	contact.ResetTokenExpiresAt = nil
	m.contacts[id] = contact
	return true, nil
}

func (m *memoryContactRepo) UpdateAvatar(ctx context.Context, id int64, avatarURL string) (domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contact, ok := m.contacts[id]
	if !ok {
		return domain.Contact{}, pgx.ErrNoRows
	}
	contact.AvatarURL = avatarURL
	m.contacts[id] = contact
	return contact, nil
}

type fakeMailer struct {
	mu            sync.Mutex
	confirmations []string
	resets        []string
}

func (f *fakeMailer) SendConfirmation(ctx context.Context, email, name, baseURL, emailToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations = append(f.confirmations, email)
	return nil
}

func (f *fakeMailer) SendReset(ctx context.Context, resetToken, email, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, resetToken)
	return nil
}

type fakeAvatarStore struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeAvatarStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return fmt.Sprintf("https://avatars.example.com/%s", key), nil
}
