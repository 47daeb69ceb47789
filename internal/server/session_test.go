package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clearfield-labs/noteloop/internal/auth"
)

func TestAuthSessionIssuesCookieAndToken(t *testing.T) {
	fixture := newRouterFixture()
	handler := fixture.handler(t)

	request := httptest.NewRequest(http.MethodPost, "/auth/session",
		strings.NewReader(`{"id_token":"google-id-token"}`))
	request.Header.Set("Content-Type", "application/json")
	recorder := performRequest(t, handler, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", recorder.Code, recorder.Body.String())
	}

	var response sessionResponsePayload
	decodeBody(t, recorder, &response)
	if response.AccessToken != "session-token" {
		t.Fatalf("unexpected access token %q", response.AccessToken)
	}
	if response.TokenType != "Bearer" {
		t.Fatalf("unexpected token type %q", response.TokenType)
	}
	if response.ExpiresIn != 3600 {
		t.Fatalf("unexpected expiry %d", response.ExpiresIn)
	}
	if response.User.ID != "google-user-1" {
		t.Fatalf("unexpected user id %q", response.User.ID)
	}
	if response.User.Email != "reviewer@example.com" {
		t.Fatalf("unexpected user email %q", response.User.Email)
	}

	cookie := recorder.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, "noteloop_session=session-token") {
		t.Fatalf("expected session cookie, got %q", cookie)
	}
	if !strings.Contains(cookie, "HttpOnly") {
		t.Fatalf("expected HttpOnly cookie, got %q", cookie)
	}

	if fixture.identities.got.Subject != "google-user-1" {
		t.Fatalf("expected login recorded for verified identity, got %+v", fixture.identities.got)
	}
}

func TestAuthSessionRejectsInvalidIDToken(t *testing.T) {
	fixture := newRouterFixture()
	fixture.verifier.err = fmt.Errorf("%w: signature invalid", auth.ErrInvalidIDToken)
	handler := fixture.handler(t)

	request := httptest.NewRequest(http.MethodPost, "/auth/session",
		strings.NewReader(`{"id_token":"forged"}`))
	request.Header.Set("Content-Type", "application/json")
	recorder := performRequest(t, handler, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
}

func TestAuthSessionRejectsEmptyPayload(t *testing.T) {
	handler := newRouterFixture().handler(t)

	request := httptest.NewRequest(http.MethodPost, "/auth/session", strings.NewReader(`{}`))
	request.Header.Set("Content-Type", "application/json")
	recorder := performRequest(t, handler, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d, want %d", recorder.Code, http.StatusBadRequest)
	}
}

func TestAuthorizeRequestBlocksMissingSession(t *testing.T) {
	fixture := newRouterFixture()
	fixture.sessions.validateErr = auth.ErrMissingSessionToken
	handler := fixture.handler(t)

	recorder := performRequest(t, handler, httptest.NewRequest(http.MethodGet, "/review/pending", http.NoBody))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(recorder.Body.String(), "unauthorized") {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}

func TestAuthorizeRequestFlagsExpiredSession(t *testing.T) {
	fixture := newRouterFixture()
	fixture.sessions.validateErr = auth.ErrExpiredSessionToken
	handler := fixture.handler(t)

	recorder := performRequest(t, handler, httptest.NewRequest(http.MethodGet, "/notes", http.NoBody))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(recorder.Body.String(), "session_expired") {
		t.Fatalf("expected session_expired code, got %s", recorder.Body.String())
	}
}
