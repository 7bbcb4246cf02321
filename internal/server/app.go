// Package server wires configuration, storage, the authentication services
// and the HTTP API together and runs them until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/identity"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	httpServer  *httpapi.Server
}

func NewApp(c *config.Config) (*App, error) {

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	cipher, err := cryptox.NewCipherFromStrings(c.EncryptionKey, c.EncryptionIV)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cipher init error: %w", err)
	}

	notifier, err := newNotifier(c, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("notifier init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	signer := auth.NewSigner([]byte(c.SecretKey), c.TokenIssuer, c.AccessTokenValidityDuration)

	providers := identity.NewRegistry()
	providers.Register(identity.GoogleProvider, identity.NewGoogleValidator(c.GoogleClientID))
	if c.GoogleClientID == "" {
		logger.Warn(context.Background(), "google client id is not set, google sign-in will reject every token")
	}
	if dev := c.DevelopmentSecrets(); len(dev) > 0 {
		logger.Warn(context.Background(), "public development key material in use, override before storing real accounts", "settings", dev)
	}

	authService := services.NewAuthService(db, rm, c, services.AuthDeps{
		Cipher:    cipher,
		Signer:    signer,
		Tokens:    auth.NewRandomTokenGenerator(),
		Providers: providers,
		Notifier:  notifier,
		Logger:    logger,
	})
	profileService := services.NewProfileService(db, rm, cipher, logger)

	hs := httpapi.NewServer(c.EndpointAddrHTTP, logger, authService, profileService, signer, c.RefreshTokenValidityDuration)

	return &App{config: c, logger: logger, db: db, repomanager: rm, httpServer: hs}, nil
}

// newNotifier sends mail through Postmark when both tokens are configured and
// only logs the links otherwise.
func newNotifier(c *config.Config, logger logging.Logger) (notify.Notifier, error) {
	if !c.MailEnabled() {
		return notify.NewMailer(notify.NewLogSender(logger)), nil
	}

	sender, err := notify.NewPostmarkSender(c.PostmarkServerToken, c.PostmarkAccountToken, c.SenderEmail, c.SupportEmail)
	if err != nil {
		return nil, err
	}
	return notify.NewMailer(sender), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run applies migrations and serves HTTP until ctx is cancelled or the
// process receives SIGINT, SIGTERM or SIGQUIT.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.db.Close()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	if err := app.httpServer.Run(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	app.logger.Info(ctx, "App stopped")
	return nil
}
