package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// Profile is the read-only view of an account returned to its owner.
type Profile struct {
	ID            string
	Name          string
	Email         string
	Phone         string
	TaxID         *string
	AvatarURL     *string
	Role          string
	EmailVerified bool
	CreatedAt     time.Time
}

type ProfileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cipher      PasswordCipher
	log         logging.Logger
}

func NewProfileService(db *sql.DB, m repomanager.RepositoryManager, cipher PasswordCipher, log logging.Logger) *ProfileService {
	return &ProfileService{db: db, repomanager: m, cipher: cipher, log: log.With("module", "profile")}
}

func (s *ProfileService) GetProfile(ctx context.Context, accountID string) (*Profile, error) {
	a, err := s.repomanager.Accounts(s.db).GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	return &Profile{
		ID:            a.ID,
		Name:          a.Name,
		Email:         a.Email,
		Phone:         a.Phone,
		TaxID:         a.TaxID,
		AvatarURL:     a.AvatarURL,
		Role:          a.Role.String(),
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt,
	}, nil
}

// ChangePassword replaces the password of a local account after checking the
// current one. Federated-only accounts have no password to change.
func (s *ProfileService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) (*Result, error) {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		a, err := repo.FindByID(ctx, accountID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrAccountNotFound
			}
			return fmt.Errorf("find account: %w", err)
		}

		if !a.HasPassword() {
			return common.ErrExternalAccount
		}

		ok, err := passwordMatches(s.cipher, a, currentPassword)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrIncorrectPassword
		}

		a.SetPasswordSurrogate(s.cipher.Encrypt(newPassword))
		return repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "password changed", "account_id", accountID)
	return &Result{Message: MsgPasswordChanged}, nil
}
