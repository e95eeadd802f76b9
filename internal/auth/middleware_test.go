// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mototwist/mototwist/internal/models"
)

// fakeAuthenticator returns a canned subject or error.
type fakeAuthenticator struct {
	subject *Subject
	err     error
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Subject, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.subject, nil
}

func (f *fakeAuthenticator) Name() string { return "fake" }

func TestNewMiddlewareRequiresAuthenticator(t *testing.T) {
	t.Parallel()

	if _, err := NewMiddleware(nil); err == nil {
		t.Error("NewMiddleware(nil) did not error")
	}
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		authErr    error
		wantStatus int
	}{
		{name: "authenticated", wantStatus: http.StatusOK},
		{name: "no credentials", authErr: ErrNoCredentials, wantStatus: http.StatusUnauthorized},
		{name: "invalid credentials", authErr: ErrInvalidCredentials, wantStatus: http.StatusUnauthorized},
		{name: "expired credentials", authErr: ErrExpiredCredentials, wantStatus: http.StatusUnauthorized},
		{name: "backend unavailable", authErr: ErrAuthenticatorUnavailable, wantStatus: http.StatusServiceUnavailable},
		{
			name:       "wrapped backend failure",
			authErr:    fmt.Errorf("%w: badger closed", ErrAuthenticatorUnavailable),
			wantStatus: http.StatusServiceUnavailable,
		},
		{name: "unexpected error", authErr: errors.New("boom"), wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			authenticator := &fakeAuthenticator{
				subject: &Subject{ID: "id-wheels", Username: "wheels", Roles: []string{models.RoleRider}},
				err:     tt.authErr,
			}
			middleware, err := NewMiddleware(authenticator)
			if err != nil {
				t.Fatalf("NewMiddleware() error = %v", err)
			}

			var seen *Subject
			handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = SubjectFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/twists", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if seen == nil || seen.ID != "id-wheels" {
					t.Errorf("handler subject = %+v, want id-wheels", seen)
				}
			} else if seen != nil {
				t.Error("handler ran despite auth failure")
			}
		})
	}
}

func TestRequireAuthBasicChallenge(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	middleware, err := NewMiddleware(NewBasicAuthenticator(store))
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}

	handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	want := `Basic realm="MotoTwist", charset="UTF-8"`
	if got := w.Header().Get("WWW-Authenticate"); got != want {
		t.Errorf("WWW-Authenticate = %q, want %q", got, want)
	}
}

func TestSubjectFromContext(t *testing.T) {
	t.Parallel()

	if subject := SubjectFromContext(context.Background()); subject != nil {
		t.Errorf("SubjectFromContext(empty) = %+v, want nil", subject)
	}

	want := &Subject{ID: "id-wheels", Username: "wheels"}
	ctx := ContextWithSubject(context.Background(), want)
	if got := SubjectFromContext(ctx); got != want {
		t.Errorf("SubjectFromContext() = %+v, want the stored subject", got)
	}
}

func TestMiddlewareAuthenticatePassthrough(t *testing.T) {
	t.Parallel()

	want := &Subject{ID: "id-wheels"}
	middleware, err := NewMiddleware(&fakeAuthenticator{subject: want})
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}

	got, err := middleware.Authenticate(context.Background(), httptest.NewRequest(http.MethodGet, "/ws", nil))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got != want {
		t.Errorf("Authenticate() = %+v, want the authenticator's subject", got)
	}
}

func TestLocalAuthenticator(t *testing.T) {
	t.Parallel()

	t.Run("resolves and caches the admin row", func(t *testing.T) {
		t.Parallel()

		store := newFakeUserStore(&models.User{
			ID:       "id-boss",
			Username: "boss",
			Role:     models.RoleAdmin,
		})
		authenticator := NewLocalAuthenticator(store, "boss")
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		subject, err := authenticator.Authenticate(context.Background(), r)
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if subject.ID != "id-boss" || !subject.HasRole(models.RoleAdmin) {
			t.Errorf("subject = %+v, want the admin row", subject)
		}
		if subject.AuthMethod != AuthModeNone {
			t.Errorf("AuthMethod = %q, want none", subject.AuthMethod)
		}

		// Later requests must not depend on the store.
		store.failErr = errors.New("db closed")
		cached, err := authenticator.Authenticate(context.Background(), r)
		if err != nil {
			t.Fatalf("cached Authenticate() error = %v", err)
		}
		if cached.ID != "id-boss" {
			t.Errorf("cached subject.ID = %q, want id-boss", cached.ID)
		}
	})

	t.Run("synthetic identity without admin credentials", func(t *testing.T) {
		t.Parallel()

		authenticator := NewLocalAuthenticator(newFakeUserStore(), "")
		subject, err := authenticator.Authenticate(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if subject.ID != "local" || !subject.HasRole(models.RoleAdmin) {
			t.Errorf("subject = %+v, want synthetic local admin", subject)
		}
	})

	t.Run("synthetic identity when admin row is missing", func(t *testing.T) {
		t.Parallel()

		authenticator := NewLocalAuthenticator(newFakeUserStore(), "boss")
		subject, err := authenticator.Authenticate(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if subject.ID != "local" {
			t.Errorf("subject.ID = %q, want local", subject.ID)
		}
	})

	t.Run("store failure is not cached", func(t *testing.T) {
		t.Parallel()

		store := newFakeUserStore(&models.User{ID: "id-boss", Username: "boss", Role: models.RoleAdmin})
		store.failErr = errors.New("db closed")
		authenticator := NewLocalAuthenticator(store, "boss")
		r := httptest.NewRequest(http.MethodGet, "/", nil)

		if _, err := authenticator.Authenticate(context.Background(), r); !errors.Is(err, ErrAuthenticatorUnavailable) {
			t.Fatalf("Authenticate() error = %v, want ErrAuthenticatorUnavailable", err)
		}

		store.failErr = nil
		subject, err := authenticator.Authenticate(context.Background(), r)
		if err != nil {
			t.Fatalf("Authenticate() after recovery error = %v", err)
		}
		if subject.ID != "id-boss" {
			t.Errorf("subject.ID = %q, want id-boss", subject.ID)
		}
	})
}
