// Package accounts declares the credential store: persistence of the Account
// aggregate together with its verification, reset and refresh token state.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository defines the operations the authentication flows need on accounts.
//
// Finders return common.ErrorNotFound when no row matches. When the repository
// is bound to a transaction, finders lock the returned row until the
// transaction ends, which serializes concurrent flows on the same account.
type Repository interface {
	// Create inserts a new account. A clash on email or tax id is reported as
	// common.ErrEmailTaken or common.ErrTaxIDTaken.
	Create(ctx context.Context, account *models.Account) error

	// Update persists every mutable column of the account.
	Update(ctx context.Context, account *models.Account) error

	FindByID(ctx context.Context, id string) (*models.Account, error)

	// GetByID reads an account without locking it, for read-only callers.
	GetByID(ctx context.Context, id string) (*models.Account, error)

	// FindByEmail matches email case-insensitively.
	FindByEmail(ctx context.Context, email string) (*models.Account, error)

	FindByVerificationToken(ctx context.Context, token string) (*models.Account, error)
	FindByResetToken(ctx context.Context, token string) (*models.Account, error)
	FindByRefreshToken(ctx context.Context, token string) (*models.Account, error)

	ExistsByEmail(ctx context.Context, email string) (bool, error)
}
