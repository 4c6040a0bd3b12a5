package repository

import (
	"context"
	"errors"
	"time"

	"github.com/contactvault/contactvault/internal/domain"
)

// ErrDuplicate signals a uniqueness violation on email or phone.
var ErrDuplicate = errors.New("contact already exists")

// ContactRepository exposes persistence for contacts. Absent rows surface as
// pgx.ErrNoRows.
type ContactRepository interface {
	GetByID(ctx context.Context, id int64) (domain.Contact, error)
	GetByEmail(ctx context.Context, email string) (domain.Contact, error)
	List(ctx context.Context) ([]domain.Contact, error)
	Create(ctx context.Context, contact domain.Contact) (domain.Contact, error)
	Update(ctx context.Context, contact domain.Contact) (domain.Contact, error)
	ChangeRole(ctx context.Context, id int64, role domain.Role) (domain.Contact, error)
	Delete(ctx context.Context, id int64) error

	SearchFirstName(ctx context.Context, inquiry string) ([]domain.Contact, error)
	SearchLastName(ctx context.Context, inquiry string) ([]domain.Contact, error)
	SearchEmailLike(ctx context.Context, inquiry string) ([]domain.Contact, error)
	UpcomingBirthdays(ctx context.Context, days int) ([]domain.Contact, error)

	// SetRefreshToken stores the current refresh token, or clears it when nil.
	SetRefreshToken(ctx context.Context, id int64, refreshToken *string) error
	// RotateRefreshToken atomically replaces current with next. It reports
	// false when the stored token no longer equals current, in which case
	// nothing is written.
	RotateRefreshToken(ctx context.Context, id int64, current, next string) (bool, error)

	ConfirmEmail(ctx context.Context, email string) error

	SetResetToken(ctx context.Context, id int64, resetToken string, expiresAt time.Time) error
	// RedeemResetToken atomically swaps the password hash and clears the
	// reset grant, but only while the stored grant equals resetToken and has
	// not expired. It reports whether the swap happened.
	RedeemResetToken(ctx context.Context, id int64, resetToken, passwordHash string) (bool, error)

	UpdateAvatar(ctx context.Context, id int64, avatarURL string) (domain.Contact, error)
}
