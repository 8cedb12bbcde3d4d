package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/entity"
)

// OTPRepository stores one-time codes. Rows are only ever inserted or
// flipped from unused to used.
type OTPRepository interface {
	Insert(ctx context.Context, otp *entity.OTP) error
	FindActive(ctx context.Context, email, code, purpose string, now time.Time) (*entity.OTP, error)
	MarkUsed(ctx context.Context, id uuid.UUID) (bool, error)
}

type otpRepo struct {
	db  *DB
	log *slog.Logger
}

func NewOTPRepository(db *DB, logger *slog.Logger) OTPRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &otpRepo{db: db, log: logger}
}

func (r *otpRepo) Insert(ctx context.Context, otp *entity.OTP) error {
	if otp.ID == uuid.Nil {
		otp.ID = uuid.New()
	}
	if otp.CreatedAt.IsZero() {
		otp.CreatedAt = time.Now().UTC()
	}
	q, args := entsql.Dialect(r.db.Dialect).
		Insert(tableOTPs).
		Columns("id", "email", "code", "purpose", "expires_at", "used", "created_at").
		Values(otp.ID.String(), otp.Email, otp.Code, otp.Purpose, toMillis(otp.ExpiresAt), false, toMillis(otp.CreatedAt)).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("%w: insert otp: %w", common.ErrDatabase, err)
	}
	return nil
}

// FindActive returns the newest unused, unexpired row matching every field.
func (r *otpRepo) FindActive(ctx context.Context, email, code, purpose string, now time.Time) (*entity.OTP, error) {
	b := entsql.Dialect(r.db.Dialect)
	q, args := b.Select("id", "email", "code", "purpose", "expires_at", "used", "created_at").
		From(b.Table(tableOTPs)).
		Where(entsql.And(
			entsql.EQ("email", email),
			entsql.EQ("code", code),
			entsql.EQ("purpose", purpose),
			entsql.EQ("used", false),
			entsql.GT("expires_at", toMillis(now)),
		)).
		OrderExpr(entsql.Expr("created_at DESC")).
		Limit(1).
		Query()

	var (
		otp              entity.OTP
		id               string
		expires, created int64
	)
	err := r.db.SQL.QueryRowContext(ctx, q, args...).
		Scan(&id, &otp.Email, &otp.Code, &otp.Purpose, &expires, &otp.Used, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find otp: %w", common.ErrDatabase, err)
	}
	otp.ID, _ = uuid.Parse(id)
	otp.ExpiresAt = fromMillis(expires)
	otp.CreatedAt = fromMillis(created)
	return &otp, nil
}

// MarkUsed flips used only if it is still false; false means another caller
// consumed the row first.
func (r *otpRepo) MarkUsed(ctx context.Context, id uuid.UUID) (bool, error) {
	q, args := entsql.Dialect(r.db.Dialect).
		Update(tableOTPs).
		Set("used", true).
		Where(entsql.And(entsql.EQ("id", id.String()), entsql.EQ("used", false))).
		Query()
	res, err := r.db.SQL.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("%w: mark otp used: %w", common.ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: mark otp used: %w", common.ErrDatabase, err)
	}
	return n == 1, nil
}
