package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/contactvault/contactvault/internal/config"
	"github.com/contactvault/contactvault/internal/domain"
	"github.com/contactvault/contactvault/internal/mailer"
	pw "github.com/contactvault/contactvault/internal/password"
	"github.com/contactvault/contactvault/internal/repository"
	"github.com/contactvault/contactvault/internal/token"
)

const mailDispatchTimeout = 15 * time.Second

// AuthService encapsulates the account lifecycle: signup, login, refresh
// rotation, email confirmation, and password reset.
type AuthService struct {
	contacts  repository.ContactRepository
	tokens    *token.Service
	mail      mailer.Dispatcher
	snowflake *snowflake.Node
	cfg       config.Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(contacts repository.ContactRepository, tokens *token.Service, mail mailer.Dispatcher, node *snowflake.Node, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		contacts:  contacts,
		tokens:    tokens,
		mail:      mail,
		snowflake: node,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/contactvault/contactvault/internal/service"),
	}
}

// Signup registers a new account and dispatches the confirmation email in
// the background.
func (s *AuthService) Signup(ctx context.Context, input ContactInput, baseURL string) (domain.Contact, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Signup")
	defer span.End()

	email := normalizeEmail(input.Email)
	_, err := s.contacts.GetByEmail(ctx, email)
	if err == nil {
		return domain.Contact{}, newError("account_exists", "Account already exists", 409)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("lookup account: %w", err)
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
			return domain.Contact{}, newError("account_exists", "Account already exists", 409)
		}
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("create account: %w", err)
	}

	s.dispatchConfirmation(created, baseURL)
	s.audit("auth.signup", "contact_id", created.ID, "email", created.Email)
	return created, nil
}

// Login checks the credentials and hands out an access/refresh pair. The
// three failure modes keep distinct codes but share status 401.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	contact, err := s.contacts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newError("invalid_email", "Invalid email", 401)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if !contact.Confirmed {
		return nil, newError("email_not_confirmed", "Email not confirmed", 401)
	}
	valid, err := pw.Verify(password, contact.PasswordHash)
	if err != nil || !valid {
		return nil, newError("invalid_password", "Invalid password", 401)
	}

	access, err := s.tokens.CreateAccessToken(contact.Email, s.cfg.LoginTokenTTL)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create access token: %w", err)
	}
	refresh, err := s.tokens.CreateRefreshToken(contact.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create refresh token: %w", err)
	}
	if err := s.contacts.SetRefreshToken(ctx, contact.ID, &refresh); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	s.audit("auth.login", "contact_id", contact.ID)
	return &TokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

// Refresh rotates the refresh token and issues a fresh pair. Presenting a
// stale token, even concurrently with a valid one, revokes the session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Refresh")
	defer span.End()

	email, err := s.tokens.DecodeRefreshToken(refreshToken)
	if err != nil {
		return nil, newError("invalid_refresh_token", "Invalid refresh token", 401)
	}
	contact, err := s.contacts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newError("invalid_refresh_token", "Invalid refresh token", 401)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	access, err := s.tokens.CreateAccessToken(contact.Email, 0)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create access token: %w", err)
	}
	next, err := s.tokens.CreateRefreshToken(contact.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	rotated, err := s.contacts.RotateRefreshToken(ctx, contact.ID, refreshToken, next)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !rotated {
		// Reuse of a superseded token: revoke the stored one outright.
		if err := s.contacts.SetRefreshToken(ctx, contact.ID, nil); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			s.log().Warn("revoke refresh token", zap.Error(err))
		}
		s.audit("auth.refresh.reuse_detected", "contact_id", contact.ID)
		return nil, newError("invalid_refresh_token", "Invalid refresh token", 401)
	}

	s.audit("auth.refresh", "contact_id", contact.ID)
	return &TokenResponse{AccessToken: access, RefreshToken: next, TokenType: "bearer"}, nil
}

// ConfirmEmail marks the account behind the email token as confirmed. It is
// idempotent: confirming twice is not an error.
func (s *AuthService) ConfirmEmail(ctx context.Context, emailToken string) (string, error) {
	ctx, span := s.startSpan(ctx, "AuthService.ConfirmEmail")
	defer span.End()

	email, err := s.tokens.DecodeEmailToken(emailToken)
	if err != nil {
		if errors.Is(err, token.ErrMalformedToken) {
			return "", newError("malformed_token", "Invalid token for email verification", 422)
		}
		return "", newError("invalid_token", "Invalid token for email verification", 401)
	}

	contact, err := s.contacts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", newError("invalid_request", "Verification error", 400)
		}
		span.RecordError(err)
		return "", fmt.Errorf("lookup account: %w", err)
	}
	if contact.Confirmed {
		return "Your email is already confirmed", nil
	}
	if err := s.contacts.ConfirmEmail(ctx, email); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("confirm email: %w", err)
	}

	s.audit("auth.email_confirmed", "contact_id", contact.ID)
	return "Email confirmed", nil
}

// ResendConfirmation dispatches another confirmation email. The reply is the
// same whether or not the address is registered.
func (s *AuthService) ResendConfirmation(ctx context.Context, email, baseURL string) (string, error) {
	ctx, span := s.startSpan(ctx, "AuthService.ResendConfirmation")
	defer span.End()

	contact, err := s.contacts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "Check your email for confirmation.", nil
		}
		span.RecordError(err)
		return "", fmt.Errorf("lookup account: %w", err)
	}
	if contact.Confirmed {
		return "Your email is already confirmed", nil
	}

	s.dispatchConfirmation(contact, baseURL)
	return "Check your email for confirmation.", nil
}

// ForgotPassword issues a single-use reset token and emails it. The token is
// never echoed in the response.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	ctx, span := s.startSpan(ctx, "AuthService.ForgotPassword")
	defer span.End()

	contact, err := s.contacts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", newError("not_found", "Not found or doesn't exist.", 404)
		}
		span.RecordError(err)
		return "", fmt.Errorf("lookup account: %w", err)
	}

	resetToken := token.NewResetToken()
	expiresAt := time.Now().UTC().Add(s.cfg.ResetTokenTTL)
	if err := s.contacts.SetResetToken(ctx, contact.ID, resetToken, expiresAt); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("store reset token: %w", err)
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), mailDispatchTimeout)
		defer cancel()
		if err := s.mail.SendReset(sendCtx, resetToken, contact.Email, contact.FirstName); err != nil {
			s.log().Error("send reset email", zap.Error(err), zap.Int64("contact_id", contact.ID))
		}
	}()

	s.audit("auth.forgot_password", "contact_id", contact.ID)
	return "Reset password token has been sent to your e-mail.", nil
}

// ResetPassword redeems the reset token and installs the new password. The
// token is consumed on success; a second redemption fails.
func (s *AuthService) ResetPassword(ctx context.Context, email, resetToken, password, confirmPassword string) (domain.Contact, error) {
	ctx, span := s.startSpan(ctx, "AuthService.ResetPassword")
	defer span.End()

	if password != confirmPassword {
		return domain.Contact{}, newError("invalid_request", "New password does not match.", 400)
	}

	contact, err := s.contacts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Contact{}, newError("not_found", "Not found or doesn't exist.", 404)
		}
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("lookup account: %w", err)
	}

	hash, err := pw.Hash(password)
	if err != nil {
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("hash password: %w", err)
	}

	redeemed, err := s.contacts.RedeemResetToken(ctx, contact.ID, resetToken, hash)
	if err != nil {
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("redeem reset token: %w", err)
	}
	if !redeemed {
		return domain.Contact{}, newError("not_found", "Reset token is invalid or expired.", 404)
	}

	s.audit("auth.password_reset", "contact_id", contact.ID)
	updated, err := s.contacts.GetByID(ctx, contact.ID)
	if err != nil {
		span.RecordError(err)
		return domain.Contact{}, fmt.Errorf("reload account: %w", err)
	}
	return updated, nil
}

func (s *AuthService) dispatchConfirmation(contact domain.Contact, baseURL string) {
	emailToken, err := s.tokens.CreateEmailToken(contact.Email)
	if err != nil {
		s.log().Error("create email token", zap.Error(err), zap.Int64("contact_id", contact.ID))
		return
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), mailDispatchTimeout)
		defer cancel()
		if err := s.mail.SendConfirmation(sendCtx, contact.Email, contact.FirstName, baseURL, emailToken); err != nil {
			s.log().Error("send confirmation email", zap.Error(err), zap.Int64("contact_id", contact.ID))
		}
	}()
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
