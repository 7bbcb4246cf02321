package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/identity"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// --- store ---

// memAccounts is an in-memory credential store with the same uniqueness
// rules as the accounts table. Values are copied in and out so a flow that
// fails half-way leaves nothing behind.
type memAccounts struct {
	mu        sync.Mutex
	rows      map[string]*models.Account
	writes    int
	locked    int
	updateErr error
	findErr   error

	// beforeCreate runs once, ahead of the next Create, to simulate a
	// concurrent writer winning the race.
	beforeCreate func()
}

func newMemAccounts() *memAccounts {
	return &memAccounts{rows: make(map[string]*models.Account)}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	c.TaxID = cloneString(a.TaxID)
	c.PasswordSurrogate = cloneString(a.PasswordSurrogate)
	c.AvatarURL = cloneString(a.AvatarURL)
	c.EmailVerificationToken = cloneString(a.EmailVerificationToken)
	c.PasswordResetToken = cloneString(a.PasswordResetToken)
	c.RefreshToken = cloneString(a.RefreshToken)
	c.PasswordResetExpiresAt = cloneTime(a.PasswordResetExpiresAt)
	c.RefreshTokenExpiresAt = cloneTime(a.RefreshTokenExpiresAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (m *memAccounts) Create(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	hook := m.beforeCreate
	m.beforeCreate = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rows {
		if strings.EqualFold(r.Email, a.Email) {
			return common.ErrEmailTaken
		}
		if r.TaxID != nil && a.TaxID != nil && *r.TaxID == *a.TaxID {
			return common.ErrTaxIDTaken
		}
	}
	m.rows[a.ID] = cloneAccount(a)
	m.writes++
	return nil
}

func (m *memAccounts) Update(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.rows[a.ID]; !ok {
		return common.ErrorNotFound
	}
	m.rows[a.ID] = cloneAccount(a)
	m.writes++
	return nil
}

func (m *memAccounts) find(match func(a *models.Account) bool) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, r := range m.rows {
		if match(r) {
			return cloneAccount(r), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memAccounts) FindByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	m.locked++
	m.mu.Unlock()
	return m.find(func(a *models.Account) bool { return a.ID == id })
}

func (m *memAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.ID == id })
}

func (m *memAccounts) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (m *memAccounts) FindByVerificationToken(_ context.Context, token string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool {
		return a.EmailVerificationToken != nil && *a.EmailVerificationToken == token
	})
}

func (m *memAccounts) FindByResetToken(_ context.Context, token string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.PasswordResetToken != nil && *a.PasswordResetToken == token })
}

func (m *memAccounts) FindByRefreshToken(_ context.Context, token string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.RefreshToken != nil && *a.RefreshToken == token })
}

func (m *memAccounts) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	if err == common.ErrorNotFound {
		return false, nil
	}
	return err == nil, err
}

func (m *memAccounts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// lockedReads counts FindByID calls, the finder that locks the row.
func (m *memAccounts) lockedReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

func (m *memAccounts) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *memAccounts) byEmail(t *testing.T, email string) *models.Account {
	t.Helper()
	a, err := m.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return a
}

func (m *memAccounts) put(a *models.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[a.ID] = cloneAccount(a)
}

type fakeRepoManager struct {
	accounts *memAccounts
}

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository      { return f.accounts }

// --- collaborators ---

type sentMail struct {
	kind, to, name, link string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *recordingNotifier) SendVerificationEmail(_ context.Context, to, name, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: "verification", to: to, name: name, link: link})
	return n.err
}

func (n *recordingNotifier) SendPasswordResetEmail(_ context.Context, to, name, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: "reset", to: to, name: name, link: link})
	return n.err
}

func (n *recordingNotifier) mails() []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMail(nil), n.sent...)
}

// sequenceTokens yields distinct tokens containing characters that change
// under URL encoding.
type sequenceTokens struct {
	mu  sync.Mutex
	n   int
	err error
}

func (g *sequenceTokens) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.n++
	return fmt.Sprintf("tok+%d/abc==", g.n), nil
}

type stubValidator struct {
	claim *identity.Claim
	err   error
}

func (v stubValidator) Validate(context.Context, string) (*identity.Claim, error) {
	return v.claim, v.err
}

// --- fixture ---

var epoch = time.Date(2025, 4, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc      *AuthService
	profiles *ProfileService
	store    *memAccounts
	mail     *recordingNotifier
	tokens   *sequenceTokens
	cipher   *cryptox.Cipher
	signer   *auth.Signer
	google   *stubValidator
	now      time.Time
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	var cfg config.Config
	cfg.LoadDefaults()

	cipher, err := cryptox.NewCipherFromStrings(cfg.EncryptionKey, cfg.EncryptionIV)
	require.NoError(t, err)

	f := &fixture{
		store:  newMemAccounts(),
		mail:   &recordingNotifier{},
		tokens: &sequenceTokens{},
		cipher: cipher,
		signer: auth.NewSigner([]byte(cfg.SecretKey), cfg.TokenIssuer, cfg.AccessTokenValidityDuration),
		google: &stubValidator{},
		now:    epoch,
	}

	providers := identity.NewRegistry()
	providers.Register(identity.GoogleProvider, f.google)

	db := newTestDB(t)
	rm := &fakeRepoManager{accounts: f.store}
	log := logging.NewNopLogger()

	f.svc = NewAuthService(db, rm, &cfg, AuthDeps{
		Cipher:    cipher,
		Signer:    f.signer,
		Tokens:    f.tokens,
		Providers: providers,
		Notifier:  f.mail,
		Logger:    log,
	})
	f.svc.now = func() time.Time { return f.now }
	f.profiles = NewProfileService(db, rm, cipher, log)

	return f
}

func (f *fixture) register(t *testing.T, email, password string) *models.Account {
	t.Helper()
	_, err := f.svc.Register(context.Background(), RegisterInput{
		Name: "Ana", Email: email, Password: password, Phone: "5512345678",
	})
	require.NoError(t, err)
	return f.store.byEmail(t, email)
}
