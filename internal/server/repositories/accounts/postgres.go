package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation = "23505"

	emailUniqueIndex = "accounts_email_lower_key"
	taxIDUniqueKey   = "accounts_tax_id_key"
)

const selectColumns = `SELECT id, email, name, phone, tax_id, password_surrogate, role, avatar_url, created_at,
		email_verified, email_verification_token, password_reset_token, password_reset_expires_at,
		refresh_token, refresh_token_expires_at
		FROM accounts`

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) error {
	query :=
		`INSERT INTO accounts (id, email, name, phone, tax_id, password_surrogate, role, avatar_url, created_at,
		 email_verified, email_verification_token, password_reset_token, password_reset_expires_at,
		 refresh_token, refresh_token_expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 `

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Email, a.Name, a.Phone, a.TaxID, a.PasswordSurrogate, a.Role, a.AvatarURL, a.CreatedAt,
		a.EmailVerified, a.EmailVerificationToken, a.PasswordResetToken, a.PasswordResetExpiresAt,
		a.RefreshToken, a.RefreshTokenExpiresAt)

	if err != nil {
		return mapWriteError(err)
	}

	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, a *models.Account) error {
	query :=
		`UPDATE accounts SET email = $2, name = $3, phone = $4, tax_id = $5, password_surrogate = $6,
		 role = $7, avatar_url = $8, email_verified = $9, email_verification_token = $10,
		 password_reset_token = $11, password_reset_expires_at = $12,
		 refresh_token = $13, refresh_token_expires_at = $14
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query,
		a.ID, a.Email, a.Name, a.Phone, a.TaxID, a.PasswordSurrogate,
		a.Role, a.AvatarURL, a.EmailVerified, a.EmailVerificationToken,
		a.PasswordResetToken, a.PasswordResetExpiresAt,
		a.RefreshToken, a.RefreshTokenExpiresAt)

	if err != nil {
		return mapWriteError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, selectColumns+` WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, selectColumns+` WHERE lower(email) = lower($1) FOR UPDATE`, email)
}

func (r *PostgresRepository) FindByVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	return r.findOne(ctx, selectColumns+` WHERE email_verification_token = $1 FOR UPDATE`, token)
}

func (r *PostgresRepository) FindByResetToken(ctx context.Context, token string) (*models.Account, error) {
	return r.findOne(ctx, selectColumns+` WHERE password_reset_token = $1 FOR UPDATE`, token)
}

func (r *PostgresRepository) FindByRefreshToken(ctx context.Context, token string) (*models.Account, error) {
	return r.findOne(ctx, selectColumns+` WHERE refresh_token = $1 FOR UPDATE`, token)
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE lower(email) = lower($1))`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return exists, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg string) (*models.Account, error) {
	var (
		a                          models.Account
		taxID, surrogate, avatar   sql.NullString
		verification, reset, fresh sql.NullString
		resetExp, freshExp         sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.Name, &a.Phone, &taxID, &surrogate, &a.Role, &avatar, &a.CreatedAt,
		&a.EmailVerified, &verification, &reset, &resetExp, &fresh, &freshExp)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	a.TaxID = stringPtr(taxID)
	a.PasswordSurrogate = stringPtr(surrogate)
	a.AvatarURL = stringPtr(avatar)
	a.EmailVerificationToken = stringPtr(verification)
	a.PasswordResetToken = stringPtr(reset)
	a.PasswordResetExpiresAt = timePtr(resetExp)
	a.RefreshToken = stringPtr(fresh)
	a.RefreshTokenExpiresAt = timePtr(freshExp)

	return &a, nil
}

// mapWriteError turns unique violations into the matching sentinel and wraps
// everything else.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case emailUniqueIndex:
			return common.ErrEmailTaken
		case taxIDUniqueKey:
			return common.ErrTaxIDTaken
		default:
			return fmt.Errorf("%w: %s", common.ErrorAlreadyExists, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("db error: %w", err)
}
