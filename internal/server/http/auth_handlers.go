package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/server/metrics"
	"github.com/pathwayfr/pathway/internal/server/services"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message      string `json:"message"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// missingFields lists the names whose value is empty, in order.
func missingFields(fields ...[2]string) []string {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	return missing
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if missing := missingFields(
		[2]string{"first_name", req.FirstName},
		[2]string{"last_name", req.LastName},
		[2]string{"email", req.Email},
		[2]string{"password", req.Password},
	); len(missing) > 0 {
		s.fail(w, r, common.Validation("missing fields: %s", strings.Join(missing, ", ")))
		return
	}

	if _, err := s.svc.Auth.Register(r.Context(), req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.AuthEvent(metrics.EventRegistered, "ok")
	writeMessage(w, http.StatusCreated, "user created, check your email to activate your account")
}

// handleVerifyEmail always redirects to the front-end; failures only add
// an error flag so the page can show "link invalid or expired".
func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	target := s.frontend("/auth/email-confirmed")
	if err := s.svc.Auth.VerifyEmail(r.Context(), chi.URLParam(r, "token")); err != nil {
		s.logger.Info(r.Context(), "email verification failed", "reason", err)
		target += "?error=1"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if missing := missingFields([2]string{"email", req.Email}, [2]string{"password", req.Password}); len(missing) > 0 {
		s.fail(w, r, common.Validation("missing fields: %s", strings.Join(missing, ", ")))
		return
	}

	pair, err := s.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.metrics.AuthEvent(metrics.EventLoginFailed, common.CodeOf(err))
		s.fail(w, r, err)
		return
	}
	s.metrics.AuthEvent(metrics.EventLogin, "ok")
	writeJSON(w, http.StatusOK, loginResponse{
		Message:      "login successful",
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Auth.Logout(r.Context(), p); err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.AuthEvent(metrics.EventLogout, "ok")
	writeMessage(w, http.StatusOK, "logged out")
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	access, err := s.svc.Auth.Refresh(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.AuthEvent(metrics.EventRefresh, "ok")
	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: access})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if missing := missingFields(
		[2]string{"current_password", req.CurrentPassword},
		[2]string{"new_password", req.NewPassword},
	); len(missing) > 0 {
		s.fail(w, r, common.Validation("missing fields: %s", strings.Join(missing, ", ")))
		return
	}

	if err := s.svc.Auth.ChangePassword(r.Context(), p.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "password changed")
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		s.fail(w, r, common.Validation("missing fields: email"))
		return
	}
	if err := s.svc.Auth.SendPasswordReset(r.Context(), req.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "check your email to reset your password")
}

// handleResetForm sends the browser to the front-end reset page.
func (s *Server) handleResetForm(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	target := s.frontend("/auth/reset-password") + "?token=" + url.QueryEscape(token)
	if err := s.svc.Auth.CheckResetToken(r.Context(), token); err != nil {
		s.logger.Info(r.Context(), "reset link rejected", "reason", err)
		target += "&error=1"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Password == "" {
		s.fail(w, r, common.Validation("missing fields: password"))
		return
	}
	if err := s.svc.Auth.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "password updated")
}

func (s *Server) frontend(path string) string {
	return strings.TrimRight(s.frontendURL, "/") + path
}
