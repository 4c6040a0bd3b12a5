package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contactvault/contactvault/internal/domain"
)

var _ ContactRepository = (*PostgresContactRepo)(nil)

const contactColumns = `id, first_name, last_name, email, phone, birthday, password_hash,
avatar_url, refresh_token, reset_password_token, reset_token_expires_at, role, confirmed, created_at`

// PostgresContactRepo implements ContactRepository on pgx.
type PostgresContactRepo struct {
	db *pgxpool.Pool
}

func NewPostgresContactRepo(pool *pgxpool.Pool) *PostgresContactRepo {
	return &PostgresContactRepo{db: pool}
}

func (r *PostgresContactRepo) GetByID(ctx context.Context, id int64) (domain.Contact, error) {
	row := r.db.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	contact, err := scanContact(row)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("get contact: %w", err)
	}
	return contact, nil
}

func (r *PostgresContactRepo) GetByEmail(ctx context.Context, email string) (domain.Contact, error) {
	row := r.db.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE email = $1`, email)
	contact, err := scanContact(row)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("get contact by email: %w", err)
	}
	return contact, nil
}

func (r *PostgresContactRepo) List(ctx context.Context) ([]domain.Contact, error) {
	return r.queryContacts(ctx, `SELECT `+contactColumns+` FROM contacts ORDER BY id`)
}

func (r *PostgresContactRepo) Create(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO contacts (id, first_name, last_name, email, phone, birthday, password_hash, avatar_url, role, confirmed)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+contactColumns,
		contact.ID,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Phone,
		contact.Birthday,
		contact.PasswordHash,
		nullString(contact.AvatarURL),
		string(contact.Role),
		contact.Confirmed,
	)

	created, err := scanContact(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Contact{}, ErrDuplicate
		}
		return domain.Contact{}, fmt.Errorf("create contact: %w", err)
	}
	return created, nil
}

func (r *PostgresContactRepo) Update(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	row := r.db.QueryRow(ctx, `
UPDATE contacts
SET first_name = $2, last_name = $3, email = $4, phone = $5, birthday = $6
WHERE id = $1
RETURNING `+contactColumns,
		contact.ID,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Phone,
		contact.Birthday,
	)

	updated, err := scanContact(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Contact{}, ErrDuplicate
		}
		return domain.Contact{}, fmt.Errorf("update contact: %w", err)
	}
	return updated, nil
}

func (r *PostgresContactRepo) ChangeRole(ctx context.Context, id int64, role domain.Role) (domain.Contact, error) {
	row := r.db.QueryRow(ctx, `
UPDATE contacts SET role = $2 WHERE id = $1
RETURNING `+contactColumns, id, string(role))

	updated, err := scanContact(row)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("change role: %w", err)
	}
	return updated, nil
}

func (r *PostgresContactRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PostgresContactRepo) SearchFirstName(ctx context.Context, inquiry string) ([]domain.Contact, error) {
	return r.queryContacts(ctx, `SELECT `+contactColumns+` FROM contacts WHERE first_name = $1 ORDER BY id`, inquiry)
}

func (r *PostgresContactRepo) SearchLastName(ctx context.Context, inquiry string) ([]domain.Contact, error) {
	return r.queryContacts(ctx, `SELECT `+contactColumns+` FROM contacts WHERE last_name = $1 ORDER BY id`, inquiry)
}

func (r *PostgresContactRepo) SearchEmailLike(ctx context.Context, inquiry string) ([]domain.Contact, error) {
	return r.queryContacts(ctx, `SELECT `+contactColumns+` FROM contacts WHERE email ILIKE '%' || $1 || '%' ORDER BY id`, inquiry)
}

func (r *PostgresContactRepo) UpcomingBirthdays(ctx context.Context, days int) ([]domain.Contact, error) {
	// Compare month/day so the window works across year boundaries.
	return r.queryContacts(ctx, `
SELECT `+contactColumns+` FROM contacts
WHERE (to_char(birthday, 'MMDD') BETWEEN to_char(now(), 'MMDD') AND to_char(now() + ($1 || ' days')::interval, 'MMDD'))
   OR (to_char(now() + ($1 || ' days')::interval, 'MMDD') < to_char(now(), 'MMDD')
       AND (to_char(birthday, 'MMDD') >= to_char(now(), 'MMDD') OR to_char(birthday, 'MMDD') <= to_char(now() + ($1 || ' days')::interval, 'MMDD')))
ORDER BY id`, fmt.Sprintf("%d", days))
}

func (r *PostgresContactRepo) SetRefreshToken(ctx context.Context, id int64, refreshToken *string) error {
	tag, err := r.db.Exec(ctx, `UPDATE contacts SET refresh_token = $2 WHERE id = $1`, id, refreshToken)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PostgresContactRepo) RotateRefreshToken(ctx context.Context, id int64, current, next string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
UPDATE contacts SET refresh_token = $3
WHERE id = $1 AND refresh_token = $2`, id, current, next)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresContactRepo) ConfirmEmail(ctx context.Context, email string) error {
	tag, err := r.db.Exec(ctx, `UPDATE contacts SET confirmed = TRUE WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PostgresContactRepo) SetResetToken(ctx context.Context, id int64, resetToken string, expiresAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
UPDATE contacts SET reset_password_token = $2, reset_token_expires_at = $3
WHERE id = $1`, id, resetToken, expiresAt)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PostgresContactRepo) RedeemResetToken(ctx context.Context, id int64, resetToken, passwordHash string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
UPDATE contacts
SET password_hash = $3, reset_password_token = NULL, reset_token_expires_at = NULL
WHERE id = $1 AND reset_password_token = $2
  AND (reset_token_expires_at IS NULL OR reset_token_expires_at > now())`,
		id, resetToken, passwordHash)
	if err != nil {
		return false, fmt.Errorf("redeem reset token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresContactRepo) UpdateAvatar(ctx context.Context, id int64, avatarURL string) (domain.Contact, error) {
	row := r.db.QueryRow(ctx, `
UPDATE contacts SET avatar_url = $2 WHERE id = $1
RETURNING `+contactColumns, id, avatarURL)

	updated, err := scanContact(row)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("update avatar: %w", err)
	}
	return updated, nil
}

func (r *PostgresContactRepo) queryContacts(ctx context.Context, query string, args ...any) ([]domain.Contact, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []domain.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, nil
}

func scanContact(row pgx.Row) (domain.Contact, error) {
	var (
		c       domain.Contact
		role    string
		avatar  sql.NullString
		refresh sql.NullString
		reset   sql.NullString
		resetAt sql.NullTime
	)
	if err := row.Scan(
		&c.ID,
		&c.FirstName,
		&c.LastName,
		&c.Email,
		&c.Phone,
		&c.Birthday,
		&c.PasswordHash,
		&avatar,
		&refresh,
		&reset,
		&resetAt,
		&role,
		&c.Confirmed,
		&c.CreatedAt,
	); err != nil {
		return domain.Contact{}, err
	}

	c.Role = domain.Role(role)
	c.AvatarURL = avatar.String
	if refresh.Valid {
		c.RefreshToken = &refresh.String
	}
	if reset.Valid {
		c.ResetPasswordToken = &reset.String
	}
	if resetAt.Valid {
		c.ResetTokenExpiresAt = &resetAt.Time
	}
	return c, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
