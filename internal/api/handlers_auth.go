// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/mototwist/mototwist/internal/audit"
	"github.com/mototwist/mototwist/internal/auth"
	"github.com/mototwist/mototwist/internal/models"
)

// Login handles password authentication (jwt mode only).
//
// @Summary Authenticate rider
// @Description Authenticates with username and password and returns a JWT, also set as an HTTP-only cookie
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.APIResponse "Authentication successful"
// @Failure 400 {object} models.APIResponse "Invalid request body"
// @Failure 401 {object} models.APIResponse "Invalid credentials"
// @Failure 403 {object} models.APIResponse "Password login disabled"
// @Failure 500 {object} models.APIResponse "Internal server error"
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	validationReq := LoginRequestValidation{
		Username:   req.Username,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	}
	if apiErr := validateRequest(&validationReq); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if h.auth == nil || h.auth.Mode() != auth.AuthModeJWT {
		respondError(w, http.StatusForbidden, "AUTH_DISABLED", "Password login is disabled", nil)
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		ip := audit.ClientIP(r)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			if h.audit != nil {
				h.audit.RecordLoginFailure(r.Context(), req.Username, "invalid credentials", ip)
			}
			respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
			return
		}
		if errors.Is(err, auth.ErrAuthenticatorUnavailable) {
			respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Authentication service unavailable", err)
			return
		}
		if h.audit != nil {
			h.audit.RecordLoginFailure(r.Context(), req.Username, "authentication error", ip)
		}
		respondError(w, http.StatusInternalServerError, "AUTH_ERROR", "Authentication failed", err)
		return
	}

	if h.audit != nil {
		h.audit.RecordLoginSuccess(r.Context(), user.ID, user.Username, audit.ClientIP(r))
	}

	expiresAt := time.Now().Add(h.config.Security.SessionTimeout)
	h.setTokenCookie(w, r, token, expiresAt, req.RememberMe)

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: models.LoginResponse{
			Token:     token,
			ExpiresAt: expiresAt,
			Username:  user.Username,
			Role:      user.Role,
			UserID:    user.ID,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// setTokenCookie stores the JWT in an HTTP-only cookie. Without
// remember-me the cookie is a session cookie and dies with the browser;
// the token inside expires at the same server-side deadline either way.
func (h *Handler) setTokenCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time, remember bool) {
	cookie := &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	}
	if remember {
		cookie.Expires = expiresAt
	}
	http.SetCookie(w, cookie)
}

// Me returns the authenticated subject.
//
// @Summary Get current rider identity
// @Description Returns the authenticated subject with roles and session metadata
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse "Identity retrieved successfully"
// @Failure 401 {object} models.APIResponse "Unauthorized"
// @Router /auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	subject, ok := requireSubject(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   subject,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// OIDCBegin starts the OIDC authorization code flow.
//
// @Summary Begin OIDC login
// @Description Redirects to the identity provider's authorization endpoint
// @Tags Auth
// @Param redirect query string false "Path to return to after login"
// @Success 302 {string} string "Redirect to identity provider"
// @Failure 403 {object} models.APIResponse "OIDC disabled"
// @Router /auth/oidc/login [get]
func (h *Handler) OIDCBegin(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil || h.auth.Mode() != auth.AuthModeOIDC {
		respondError(w, http.StatusForbidden, "AUTH_DISABLED", "OIDC login is disabled", nil)
		return
	}

	redirect := sanitizeLocalRedirect(r.URL.Query().Get("redirect"))

	authURL, err := h.auth.BeginOIDC(r.Context(), redirect)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "AUTH_ERROR", "Failed to start OIDC flow", err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// OIDCCallback completes the OIDC flow: code exchange, rider
// provisioning, session creation, session cookie.
//
// @Summary OIDC callback
// @Description Exchanges the authorization code, establishes the session and redirects to the post-login path
// @Tags Auth
// @Param code query string true "Authorization code"
// @Param state query string true "Flow state"
// @Success 302 {string} string "Redirect to post-login path"
// @Failure 401 {object} models.APIResponse "Code exchange failed"
// @Router /auth/oidc/callback [get]
func (h *Handler) OIDCCallback(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil || h.auth.Mode() != auth.AuthModeOIDC {
		respondError(w, http.StatusForbidden, "AUTH_DISABLED", "OIDC login is disabled", nil)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Missing code or state parameter", nil)
		return
	}

	session, redirect, err := h.auth.CompleteOIDC(r.Context(), code, state)
	if err != nil {
		if h.audit != nil {
			h.audit.RecordLoginFailure(r.Context(), "", "oidc callback failed", audit.ClientIP(r))
		}
		respondError(w, http.StatusUnauthorized, "AUTH_ERROR", "OIDC login failed", err)
		return
	}

	if h.audit != nil {
		h.audit.RecordLoginSuccess(r.Context(), session.UserID, session.Username, audit.ClientIP(r))
	}

	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	http.SetCookie(w, h.auth.SessionCookie(session.ID, maxAge))

	redirect = sanitizeLocalRedirect(redirect)
	http.Redirect(w, r, redirect, http.StatusFound)
}

// Logout tears down the rider's session.
//
// @Summary Log out
// @Description Deletes the server-side session (oidc mode), expires the cookies and returns the provider logout URL when there is one
// @Tags Auth
// @Accept json
// @Produce json
// @Success 200 {object} models.APIResponse "Logged out"
// @Router /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var logoutURL string
	if h.auth != nil {
		url, err := h.auth.Logout(r.Context(), r, sanitizeLocalRedirect(r.URL.Query().Get("redirect")))
		if err != nil {
			respondError(w, http.StatusInternalServerError, "AUTH_ERROR", "Logout failed", err)
			return
		}
		logoutURL = url

		// Expire the session cookie (oidc) and the token cookie (jwt).
		http.SetCookie(w, h.auth.SessionCookie("", -1))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	if h.audit != nil {
		if subject := auth.SubjectFromContext(r.Context()); subject != nil {
			h.audit.RecordLogout(r.Context(), subject.ID, subject.Username, audit.ClientIP(r))
		}
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]string{
			"logout_url": logoutURL,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// sanitizeLocalRedirect keeps post-login/logout redirects on this site.
// Anything that is not a local absolute path falls back to "/", which
// blocks open-redirect abuse through the redirect parameter.
func sanitizeLocalRedirect(path string) string {
	if path == "" || path[0] != '/' {
		return "/"
	}
	// "//host" and "/\host" are scheme-relative escapes.
	if len(path) > 1 && (path[1] == '/' || path[1] == '\\') {
		return "/"
	}
	return path
}
