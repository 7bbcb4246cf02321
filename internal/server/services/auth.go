package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/identity"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

const notifyTimeout = 10 * time.Second

// AuthDeps are the collaborators of AuthService.
type AuthDeps struct {
	Cipher    PasswordCipher
	Signer    AccessTokenIssuer
	Tokens    auth.TokenGenerator
	Providers IdentityProviders
	Notifier  notify.Notifier
	Logger    logging.Logger
}

// AuthService implements registration, sign-in and the token lifecycles.
// Every flow loads, mutates and saves the account inside one transaction;
// mails go out after the commit and their failures are only logged.
type AuthService struct {
	db                    *sql.DB
	repomanager           repomanager.RepositoryManager
	cipher                PasswordCipher
	signer                AccessTokenIssuer
	tokens                auth.TokenGenerator
	providers             IdentityProviders
	notifier              notify.Notifier
	log                   logging.Logger
	frontendBaseURL       string
	refreshTokenValidity  time.Duration
	passwordResetValidity time.Duration
	now                   func() time.Time
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, deps AuthDeps) *AuthService {
	return &AuthService{
		db:                    db,
		repomanager:           m,
		cipher:                deps.Cipher,
		signer:                deps.Signer,
		tokens:                deps.Tokens,
		providers:             deps.Providers,
		notifier:              deps.Notifier,
		log:                   deps.Logger.With("module", "auth"),
		frontendBaseURL:       strings.TrimRight(cfg.FrontendBaseURL, "/"),
		refreshTokenValidity:  cfg.RefreshTokenValidityDuration,
		passwordResetValidity: cfg.PasswordResetValidityDuration,
		now:                   time.Now,
	}
}

// RegisterInput carries the fields of a new local account. TaxID is optional.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	TaxID    *string
}

// Register creates an unverified account and mails a verification link.
// An email that is already registered, including one that loses a concurrent
// race on the unique index, produces the same result and no mail.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	result := &Result{Message: MsgRegistered}
	email := strings.TrimSpace(in.Email)

	token, err := s.tokens.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}
	surrogate := s.cipher.Encrypt(in.Password)

	var created *models.Account

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		exists, err := repo.ExistsByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if exists {
			return common.ErrEmailTaken
		}

		a := models.NewAccount(strings.TrimSpace(in.Name), email, in.Phone, in.TaxID, s.now())
		a.SetPasswordSurrogate(surrogate)
		a.SetEmailVerificationToken(token)

		if err := repo.Create(ctx, a); err != nil {
			return err
		}
		created = a
		return nil
	})

	switch {
	// a taken email or tax id gets the same answer as a new account
	case errors.Is(err, common.ErrEmailTaken):
		s.log.Debug(ctx, "register skipped, email already registered")
		return result, nil
	case errors.Is(err, common.ErrTaxIDTaken):
		s.log.Debug(ctx, "register skipped, tax id already registered")
		return result, nil
	case err != nil:
		return nil, fmt.Errorf("register: %w", err)
	}

	s.log.Info(ctx, "account registered", "account_id", created.ID)
	s.sendVerification(ctx, created, token)

	return result, nil
}

// Login checks the password against the stored surrogate and issues a new
// token pair. Unknown email, a federated-only account and a wrong password
// all fail with the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	var pair *TokenPair

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		a, err := repo.FindByEmail(ctx, strings.TrimSpace(email))
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidCredentials
			}
			return fmt.Errorf("find account: %w", err)
		}

		if !a.HasPassword() {
			return common.ErrInvalidCredentials
		}

		ok, err := passwordMatches(s.cipher, a, password)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrInvalidCredentials
		}

		pair, err = s.issueTokens(a)
		if err != nil {
			return err
		}
		return repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// ExternalLogin signs in with an ID token from an external provider, creating
// a verified, password-less account on first use.
func (s *AuthService) ExternalLogin(ctx context.Context, provider, idToken string) (*TokenPair, error) {
	validator, err := s.providers.Lookup(provider)
	if err != nil {
		return nil, common.ErrUnsupportedProvider
	}

	claim, err := validator.Validate(ctx, idToken)
	if err != nil || claim == nil {
		s.log.Debug(ctx, "external token rejected", "provider", provider, "error", err)
		return nil, common.ErrInvalidExternalToken
	}

	pair, err := s.externalLogin(ctx, claim)
	if errors.Is(err, common.ErrEmailTaken) {
		// a concurrent first sign-in created the account; it exists now
		pair, err = s.externalLogin(ctx, claim)
	}
	if err != nil {
		return nil, err
	}

	return pair, nil
}

func (s *AuthService) externalLogin(ctx context.Context, claim *identity.Claim) (*TokenPair, error) {
	var pair *TokenPair

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		a, err := repo.FindByEmail(ctx, claim.Email)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			name := claim.Name
			if name == "" {
				name = claim.Email
			}
			a = models.NewExternalAccount(name, claim.Email, claim.Picture, s.now())
			if pair, err = s.issueTokens(a); err != nil {
				return err
			}
			if err := repo.Create(ctx, a); err != nil {
				return err
			}
			s.log.Info(ctx, "account created from external identity", "account_id", a.ID)
			return nil
		case err != nil:
			return fmt.Errorf("find account: %w", err)
		}

		if pair, err = s.issueTokens(a); err != nil {
			return err
		}
		return repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// RefreshToken exchanges a refresh token for a new pair. The presented token
// is replaced, so it cannot be used again.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrInvalidRefreshToken
	}

	var pair *TokenPair

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		a, err := repo.FindByRefreshToken(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidRefreshToken
			}
			return fmt.Errorf("find account: %w", err)
		}

		if a.RefreshTokenExpired(s.now()) {
			return common.ErrExpiredRefreshToken
		}

		if pair, err = s.issueTokens(a); err != nil {
			return err
		}
		return repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// Logout revokes the refresh token if it is the account's current one.
// Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (*Result, error) {
	result := &Result{Message: MsgLoggedOut}
	if refreshToken == "" {
		return result, nil
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		a, err := repo.FindByRefreshToken(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil
			}
			return fmt.Errorf("find account: %w", err)
		}

		a.ClearRefreshToken()
		return repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// VerifyEmail consumes a verification token. The token may arrive URL-encoded
// or already decoded.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*Result, error) {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		a, err := findByAnyForm(ctx, token, repo.FindByVerificationToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidVerificationToken
			}
			return fmt.Errorf("find account: %w", err)
		}

		a.MarkEmailVerified()
		return repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	return &Result{Message: MsgEmailVerified}, nil
}

// ForgotPassword stores a fresh reset token and mails the reset link. The
// result does not reveal whether the email belongs to an account.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*Result, error) {
	result := &Result{Message: MsgResetRequested}

	var (
		target *models.Account
		token  string
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		a, err := repo.FindByEmail(ctx, strings.TrimSpace(email))
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil
			}
			return fmt.Errorf("find account: %w", err)
		}

		if token, err = s.tokens.Generate(); err != nil {
			return fmt.Errorf("generate reset token: %w", err)
		}
		a.SetPasswordResetToken(token, s.now().Add(s.passwordResetValidity))

		if err := repo.Update(ctx, a); err != nil {
			return err
		}
		target = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("forgot password: %w", err)
	}

	if target != nil {
		s.sendPasswordReset(ctx, target, token)
	}

	return result, nil
}

// ResetPassword replaces the password using a reset token. An expired token is
// rejected but left in place; only a new request or a successful reset
// replaces it.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (*Result, error) {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		a, err := findByAnyForm(ctx, token, repo.FindByResetToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidResetToken
			}
			return fmt.Errorf("find account: %w", err)
		}

		if a.PasswordResetExpired(s.now()) {
			return common.ErrExpiredResetToken
		}

		a.SetPasswordSurrogate(s.cipher.Encrypt(newPassword))
		a.ClearPasswordResetToken()
		return repo.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "password reset")
	return &Result{Message: MsgPasswordReset}, nil
}

// issueTokens signs an access token and stores a new refresh token on the
// account, overwriting the previous one. The caller persists the account.
func (s *AuthService) issueTokens(a *models.Account) (*TokenPair, error) {
	access, err := s.signer.IssueAccessToken(a)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.tokens.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	a.SetRefreshToken(refresh, s.now().Add(s.refreshTokenValidity))

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// passwordMatches decrypts the surrogate and compares it with password.
func passwordMatches(c PasswordCipher, a *models.Account, password string) (bool, error) {
	plain, err := c.Decrypt(*a.PasswordSurrogate)
	if err != nil {
		return false, common.ErrDecryptionFailed
	}
	return subtle.ConstantTimeCompare([]byte(plain), []byte(password)) == 1, nil
}

// findByAnyForm looks the token up URL-decoded first, then as given.
func findByAnyForm(ctx context.Context, token string, find func(context.Context, string) (*models.Account, error)) (*models.Account, error) {
	for _, candidate := range tokenForms(token) {
		a, err := find(ctx, candidate)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		return a, err
	}
	return nil, common.ErrorNotFound
}

func tokenForms(token string) []string {
	if token == "" {
		return nil
	}
	decoded, err := url.QueryUnescape(token)
	if err != nil || decoded == token || decoded == "" {
		return []string{token}
	}
	return []string{decoded, token}
}

func (s *AuthService) link(path, token string) string {
	return s.frontendBaseURL + path + "?token=" + url.QueryEscape(token)
}

func (s *AuthService) sendVerification(ctx context.Context, a *models.Account, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.notifier.SendVerificationEmail(ctx, a.Email, a.Name, s.link("/verify-email", token)); err != nil {
		s.log.Warn(ctx, "verification email not sent", "email", a.Email, "error", err)
	}
}

func (s *AuthService) sendPasswordReset(ctx context.Context, a *models.Account, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.notifier.SendPasswordResetEmail(ctx, a.Email, a.Name, s.link("/reset-password", token)); err != nil {
		s.log.Warn(ctx, "password reset email not sent", "email", a.Email, "error", err)
	}
}
