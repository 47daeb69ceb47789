package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clearfield-labs/noteloop/internal/digest"
	"github.com/clearfield-labs/noteloop/internal/syncer"
)

func TestSyncDriveRequiresBearerKey(t *testing.T) {
	fixture := newRouterFixture()
	handler := fixture.handler(t)

	request := httptest.NewRequest(http.MethodPost, "/sync-drive", http.NoBody)
	request.Header.Set("Authorization", "Bearer wrong-key")
	recorder := performRequest(t, handler, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	if fixture.sync.runs != 0 {
		t.Fatalf("sync must not run without a valid key")
	}
}

func TestSyncDriveVerifiesFoldersBeforeRunning(t *testing.T) {
	fixture := newRouterFixture()
	fixture.sync.verifyErr = errors.New("folder gone")
	handler := fixture.handler(t)

	request := httptest.NewRequest(http.MethodPost, "/sync-drive", http.NoBody)
	request.Header.Set("Authorization", "Bearer "+testSyncKey)
	recorder := performRequest(t, handler, request)

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: got %d, want %d", recorder.Code, http.StatusInternalServerError)
	}
	if !strings.Contains(recorder.Body.String(), "folder_verification_failed") {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
	if fixture.sync.runs != 0 {
		t.Fatalf("sync must not run when verification fails")
	}
}

func TestSyncDriveReturnsRunResult(t *testing.T) {
	fixture := newRouterFixture()
	fixture.sync.result = syncer.Result{
		Message: "Sync complete: 2 processed, 0 failed",
		Results: []syncer.FileResult{
			{Folder: "Standup", File: "2025-06-14 notes", Success: true},
			{Folder: "Standup", File: "2025-06-15 notes", Success: true},
		},
	}
	handler := fixture.handler(t)

	request := httptest.NewRequest(http.MethodPost, "/sync-drive", http.NoBody)
	request.Header.Set("Authorization", "Bearer "+testSyncKey)
	recorder := performRequest(t, handler, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", recorder.Code, recorder.Body.String())
	}

	var response syncer.Result
	decodeBody(t, recorder, &response)
	if response.Message != "Sync complete: 2 processed, 0 failed" || len(response.Results) != 2 {
		t.Fatalf("unexpected response %+v", response)
	}
}

func TestReviewEmailAcceptsQueryKey(t *testing.T) {
	fixture := newRouterFixture()
	fixture.digest.email = digest.Email{
		Subject:        "📬 You have 3 notes to review today",
		Total:          3,
		NextDayCount:   2,
		WeekLaterCount: 1,
	}
	handler := fixture.handler(t)

	recorder := performRequest(t, handler,
		httptest.NewRequest(http.MethodPost, "/review/email?api_key="+testSyncKey, http.NoBody))
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", recorder.Code, recorder.Body.String())
	}

	var response digestResponsePayload
	decodeBody(t, recorder, &response)
	if !response.Sent || response.Total != 3 || response.NextDayCount != 2 {
		t.Fatalf("unexpected response %+v", response)
	}
	if fixture.digest.sends != 1 {
		t.Fatalf("expected one digest send, got %d", fixture.digest.sends)
	}
}

func TestReviewEmailRejectsMissingKey(t *testing.T) {
	fixture := newRouterFixture()
	handler := fixture.handler(t)

	recorder := performRequest(t, handler, httptest.NewRequest(http.MethodPost, "/review/email", http.NoBody))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	if fixture.digest.sends != 0 {
		t.Fatalf("digest must not send without a key")
	}
}

func TestCronFansOutIndependently(t *testing.T) {
	fixture := newRouterFixture()
	fixture.sync.runErr = errors.New("drive unreachable")
	fixture.digest.email = digest.Email{Subject: "✨ You're all caught up — no notes to review"}
	handler := fixture.handler(t)

	request := httptest.NewRequest(http.MethodGet, "/cron", http.NoBody)
	request.Header.Set("Authorization", "Bearer "+testCronKey)
	recorder := performRequest(t, handler, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", recorder.Code, recorder.Body.String())
	}

	var response cronResponsePayload
	decodeBody(t, recorder, &response)
	if response.Sync.OK || response.Sync.Error == "" {
		t.Fatalf("expected failed sync step, got %+v", response.Sync)
	}
	if !response.Digest.OK {
		t.Fatalf("expected digest step to run despite sync failure, got %+v", response.Digest)
	}
	if fixture.digest.sends != 1 {
		t.Fatalf("expected one digest send, got %d", fixture.digest.sends)
	}
}

func TestCronRejectsWrongSecret(t *testing.T) {
	fixture := newRouterFixture()
	handler := fixture.handler(t)

	request := httptest.NewRequest(http.MethodGet, "/cron", http.NoBody)
	request.Header.Set("Authorization", "Bearer "+testSyncKey)
	recorder := performRequest(t, handler, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	if fixture.sync.runs != 0 || fixture.digest.sends != 0 {
		t.Fatalf("cron steps must not run without the cron secret")
	}
}
