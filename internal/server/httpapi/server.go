// Package httpapi exposes the authentication and profile flows over HTTP/JSON.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// AuthFlows is implemented by services.AuthService.
type AuthFlows interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.Result, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	ExternalLogin(ctx context.Context, provider, idToken string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) (*services.Result, error)
	VerifyEmail(ctx context.Context, token string) (*services.Result, error)
	ForgotPassword(ctx context.Context, email string) (*services.Result, error)
	ResetPassword(ctx context.Context, token, newPassword string) (*services.Result, error)
}

// ProfileFlows is implemented by services.ProfileService.
type ProfileFlows interface {
	GetProfile(ctx context.Context, accountID string) (*services.Profile, error)
	ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) (*services.Result, error)
}

// AccessTokenVerifier is implemented by auth.Signer.
type AccessTokenVerifier interface {
	Parse(token string) (*auth.Claims, error)
}

type Server struct {
	address      string
	auth         AuthFlows
	profiles     ProfileFlows
	verifier     AccessTokenVerifier
	logger       logging.Logger
	cookieMaxAge time.Duration
}

// NewServer builds the HTTP server. refreshValidity sets the Max-Age of the
// refresh token cookie.
func NewServer(address string, l logging.Logger, a AuthFlows, p ProfileFlows, v AccessTokenVerifier, refreshValidity time.Duration) *Server {
	return &Server{
		address:      address,
		auth:         a,
		profiles:     p,
		verifier:     v,
		logger:       l.With("module", "http_server"),
		cookieMaxAge: refreshValidity,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
