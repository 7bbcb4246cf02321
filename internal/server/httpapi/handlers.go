package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

type registerRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Phone    string  `json:"phone"`
	TaxID    *string `json:"taxId"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type externalLoginRequest struct {
	Provider string `json:"provider"`
	IDToken  string `json:"idToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type profileResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	TaxID         *string   `json:"taxId,omitempty"`
	AvatarURL     *string   `json:"avatarUrl,omitempty"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	phone, phoneErr := normalizePhone(req.Phone)
	taxID, taxErr := normalizeTaxID(req.TaxID)

	if err := firstError(
		validateName(req.Name),
		validateEmail(req.Email),
		validatePassword(req.Password),
		phoneErr,
		taxErr,
	); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.auth.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    phone,
		TaxID:    taxID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: res.Message})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := firstError(
		required(req.Email, "El email es obligatorio."),
		required(req.Password, "La contraseña es obligatoria."),
	); err != nil {
		s.writeError(w, r, err)
		return
	}

	pair, err := s.auth.Login(r.Context(), req.Email, req.Password)
	s.writeTokens(w, r, pair, err)
}

func (s *Server) externalLogin(w http.ResponseWriter, r *http.Request) {
	var req externalLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := firstError(
		required(req.Provider, "El proveedor es obligatorio."),
		required(req.IDToken, "El token externo es obligatorio."),
	); err != nil {
		s.writeError(w, r, err)
		return
	}

	pair, err := s.auth.ExternalLogin(r.Context(), req.Provider, req.IDToken)
	s.writeTokens(w, r, pair, err)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(common.RefreshTokenCookieName)
	if err != nil || c.Value == "" {
		s.writeError(w, r, invalid("El token de refresco es obligatorio."))
		return
	}

	pair, err := s.auth.RefreshToken(r.Context(), c.Value)
	s.writeTokens(w, r, pair, err)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(common.RefreshTokenCookieName); err == nil {
		token = c.Value
	}

	res, err := s.auth.Logout(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: res.Message})
}

func (s *Server) verifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.writeError(w, r, common.ErrInvalidVerificationToken)
		return
	}

	res, err := s.auth.VerifyEmail(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: res.Message})
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := validateEmail(req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.auth.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: res.Message})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := firstError(
		required(req.Token, "El token es obligatorio."),
		validatePassword(req.NewPassword),
	); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.auth.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: res.Message})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	p, err := s.profiles.GetProfile(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ID:            p.ID,
		Name:          p.Name,
		Email:         p.Email,
		Phone:         p.Phone,
		TaxID:         p.TaxID,
		AvatarURL:     p.AvatarURL,
		Role:          p.Role,
		EmailVerified: p.EmailVerified,
		CreatedAt:     p.CreatedAt,
	})
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := firstError(
		required(req.CurrentPassword, "La contraseña actual es obligatoria."),
		validatePassword(req.NewPassword),
	); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.profiles.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: res.Message})
}

// writeTokens answers a successful sign-in with the access token in the body
// and the refresh token in the cookie.
func (s *Server) writeTokens(w http.ResponseWriter, r *http.Request, pair *services.TokenPair, err error) {
	if err != nil {
		if errors.Is(err, common.ErrInvalidRefreshToken) || errors.Is(err, common.ErrExpiredRefreshToken) {
			clearRefreshCookie(w)
		}
		s.writeError(w, r, err)
		return
	}

	s.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken})
}
