package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   access token signing key
//	-i string   access token issuer
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-x int      password reset token validity, minutes
//	-k string   password cipher key (32 bytes)
//	-v string   password cipher IV (16 bytes)
//	-g string   Google OAuth client id
//	-f string   frontend base URL for mailed links
//	-l string   log level
//
// Duration flags are whole minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-i", "-t", "-r", "-x", "-k", "-v", "-g", "-f", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "access token signing key")
	fs.StringVar(&config.TokenIssuer, "i", config.TokenIssuer, "access token issuer")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")
	passwordResetValidity := fs.Int("x", int(config.PasswordResetValidityDuration.Minutes()), "password reset token validity (in minutes)")

	fs.StringVar(&config.EncryptionKey, "k", config.EncryptionKey, "password cipher key")
	fs.StringVar(&config.EncryptionIV, "v", config.EncryptionIV, "password cipher IV")
	fs.StringVar(&config.GoogleClientID, "g", config.GoogleClientID, "Google OAuth client id")
	fs.StringVar(&config.FrontendBaseURL, "f", config.FrontendBaseURL, "frontend base URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * time.Minute
	config.PasswordResetValidityDuration = time.Duration(*passwordResetValidity) * time.Minute
}
