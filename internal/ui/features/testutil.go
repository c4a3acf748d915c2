// Package features provides shared test utilities for UI feature tests.
package features

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/answerdesk/internal/blob"
	"github.com/leapstack-labs/answerdesk/internal/qa"
	"github.com/leapstack-labs/answerdesk/internal/state"
	"github.com/leapstack-labs/answerdesk/internal/testutil"
	"github.com/leapstack-labs/answerdesk/internal/ui/notifier"
	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// TestQuestion is a helper to create test questions with minimal boilerplate.
type TestQuestion struct {
	Title   string
	Content string
	// Answer is saved when non-empty.
	Answer string
	Author string
	// Files are attached to the answer in order.
	Files []TestFile
}

// TestFile is an attachment of a TestQuestion.
type TestFile struct {
	Name    string
	Content string
}

// TestFixture holds all dependencies needed for UI handler tests.
type TestFixture struct {
	Store        *state.SQLiteStore
	Blobs        *blob.LocalStore
	Service      *qa.Service
	Notifier     *notifier.Notifier
	SessionStore *sessions.CookieStore
	Questions    []*core.Question
}

// SetupTestFixture creates a fixture with an in-memory store, a temporary
// blob directory and the provided questions.
func SetupTestFixture(t *testing.T, questions ...TestQuestion) *TestFixture {
	t.Helper()

	logger := testutil.NewTestLogger(t)

	store := state.NewSQLiteStore(logger)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() {
		_ = store.Close()
	})

	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	svc := qa.NewService(store, blobs, logger, qa.Options{Location: time.UTC})

	fixture := &TestFixture{
		Store:        store,
		Blobs:        blobs,
		Service:      svc,
		Notifier:     notifier.New(),
		SessionStore: NewTestSessionStore(),
	}

	ctx := context.Background()
	for _, tq := range questions {
		q, err := svc.CreateQuestion(ctx, tq.Title, tq.Content)
		require.NoError(t, err)
		if tq.Answer != "" {
			var uploads []qa.Upload
			for _, f := range tq.Files {
				uploads = append(uploads, TestUpload(f.Name, f.Content))
			}
			_, err = svc.SaveAnswer(ctx, q.ID, tq.Answer, tq.Author, uploads)
			require.NoError(t, err)
		}
		fixture.Questions = append(fixture.Questions, q)
	}

	return fixture
}

// TestUpload builds an in-memory upload.
func TestUpload(name, content string) qa.Upload {
	return qa.Upload{
		Name:        name,
		ContentType: "text/plain",
		Size:        int64(len(content)),
		Body:        strings.NewReader(content),
	}
}

// RequestWithPathParam wraps a request with chi URL params.
func RequestWithPathParam(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// NewTestSessionStore creates a session store for testing.
func NewTestSessionStore() *sessions.CookieStore {
	return sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!"))
}
