// Package otp issues and verifies one-time email codes. A code is issued,
// then either consumed once or left to expire; rows are never reset.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/entity"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/mailer"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/repository"
)

const (
	DefaultTTL    = 10 * time.Minute
	DefaultDigits = 6
)

// ErrInvalidCode covers wrong, expired and already-used codes alike.
var ErrInvalidCode = common.NewAppError("OTP_INVALID", "invalid or expired code", common.ErrValidation)

// ErrDelivery is returned when the code was stored but the email failed.
var ErrDelivery = errors.New("otp delivery failed")

type Service struct {
	repo   repository.OTPRepository
	mail   mailer.Mailer
	log    *slog.Logger
	ttl    time.Duration
	digits int
	now    func() time.Time
}

type Option func(*Service)

func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithDigits(n int) Option {
	return func(s *Service) {
		if n >= 4 && n <= 10 {
			s.digits = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo repository.OTPRepository, m mailer.Mailer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:   repo,
		mail:   m,
		log:    logger,
		ttl:    DefaultTTL,
		digits: DefaultDigits,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email required", common.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: email: %w", common.ErrInvalidInput, err)
	}
	return email, nil
}

func parsePurpose(p string) (constants.OTPPurpose, error) {
	purpose := constants.OTPPurpose(strings.ToLower(strings.TrimSpace(p)))
	if !purpose.Valid() {
		return "", fmt.Errorf("%w: unknown purpose %q", common.ErrInvalidInput, p)
	}
	return purpose, nil
}

// generateCode returns a uniformly random decimal code with no leading-zero
// loss.
func generateCode(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

func subjectFor(p constants.OTPPurpose) string {
	if p == constants.OTPPurposeSignup {
		return "Verify your LifeMaxxing Account"
	}
	return "Reset your Password"
}

func renderBody(code string, ttl time.Duration) string {
	return fmt.Sprintf(`<div style="font-family: monospace; background-color: #000; color: #78e02f; padding: 20px;">
  <h1 style="text-transform: uppercase;">LifeMaxxing OS</h1>
  <p>Your verification code is:</p>
  <h2 style="font-size: 32px; letter-spacing: 5px;">%s</h2>
  <p>This code expires in %d minutes.</p>
  <hr style="border-color: #78e02f;">
  <p style="font-size: 10px;">End of transmission.</p>
</div>`, html.EscapeString(code), int(ttl.Minutes()))
}

// Issue stores a new code and emails it. If the email fails the row stays and
// simply expires.
func (s *Service) Issue(ctx context.Context, email, purpose string) (*entity.OTP, error) {
	addr, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	p, err := parsePurpose(purpose)
	if err != nil {
		return nil, err
	}

	code, err := generateCode(s.digits)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	now := s.now().UTC()
	row := &entity.OTP{
		Email:     addr,
		Code:      code,
		Purpose:   string(p),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.Insert(ctx, row); err != nil {
		s.log.Error("otp.issue.store_failed", "email", addr, "error", err)
		return nil, err
	}

	err = s.mail.Send(ctx, mailer.Message{
		To:      addr,
		Subject: subjectFor(p),
		HTML:    renderBody(code, s.ttl),
	})
	if err != nil {
		s.log.Error("otp.issue.send_failed", "email", addr, "otp_id", row.ID, "error", err)
		return row, fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	s.log.Info("otp.issue.ok", "email", addr, "purpose", p, "otp_id", row.ID, "expires_at", row.ExpiresAt)
	return row, nil
}

// Verify consumes the newest matching unused, unexpired code. Concurrent
// verifications of the same code succeed at most once.
func (s *Service) Verify(ctx context.Context, email, code, purpose string) error {
	addr, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	p, err := parsePurpose(purpose)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: code required", common.ErrInvalidInput)
	}

	row, err := s.repo.FindActive(ctx, addr, code, string(p), s.now().UTC())
	if errors.Is(err, common.ErrNotFound) {
		s.log.Warn("otp.verify.rejected", "email", addr, "purpose", p)
		return ErrInvalidCode
	}
	if err != nil {
		return err
	}

	ok, err := s.repo.MarkUsed(ctx, row.ID)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warn("otp.verify.already_used", "email", addr, "otp_id", row.ID)
		return ErrInvalidCode
	}
	s.log.Info("otp.verify.ok", "email", addr, "purpose", p, "otp_id", row.ID)
	return nil
}
