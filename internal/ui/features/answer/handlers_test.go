package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/answerdesk/internal/dispatch"
	"github.com/leapstack-labs/answerdesk/internal/qa"
	"github.com/leapstack-labs/answerdesk/internal/testutil"
	"github.com/leapstack-labs/answerdesk/internal/ui/features"
	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// =============================================================================
// Test Setup Helpers
// =============================================================================

func setupTestHandlers(t *testing.T, reload bool, questions ...features.TestQuestion) (*Handlers, *features.TestFixture) {
	t.Helper()

	fixture := features.SetupTestFixture(t, questions...)
	handlers := NewHandlers(testConfig(t, fixture, reload))
	return handlers, fixture
}

func testConfig(t *testing.T, fixture *features.TestFixture, reload bool) Config {
	t.Helper()
	return Config{
		Service:            fixture.Service,
		SessionStore:       fixture.SessionStore,
		Notifier:           fixture.Notifier,
		Logger:             testutil.NewTestLogger(t),
		Author:             "tester",
		ReloadOnFileDelete: reload,
		IsDev:              true,
	}
}

var answeredQuestion = features.TestQuestion{
	Title:   "How to deploy?",
	Content: "<p>Steps please</p>",
	Answer:  "<p>Use the script</p>",
	Author:  "alice",
	Files: []features.TestFile{
		{Name: "guide.pdf", Content: "pdf"},
		{Name: "notes.txt", Content: "notes"},
	},
}

var openQuestion = features.TestQuestion{Title: "Open question", Content: "<p>No answer yet</p>"}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

func attachmentIDs(t *testing.T, fixture *features.TestFixture, questionID int64) []int64 {
	t.Helper()
	atts, err := fixture.Store.ListAttachments(questionID)
	require.NoError(t, err)
	ids := make([]int64, 0, len(atts))
	for _, a := range atts {
		ids = append(ids, a.ID)
	}
	return ids
}

// =============================================================================
// QuestionPage Tests
// =============================================================================

func TestQuestionPage(t *testing.T) {
	h, fixture := setupTestHandlers(t, true, answeredQuestion)
	q := fixture.Questions[0]

	req := httptest.NewRequest(http.MethodGet, "/questions/"+idString(q.ID), nil)
	req = features.RequestWithPathParam(req, "id", idString(q.ID))
	rec := httptest.NewRecorder()

	h.QuestionPage(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, want := range []string{
		"<!doctype html>",
		"<title>How to deploy? - answerdesk</title>",
		"<p>Steps please</p>",
		"<p>Use the script</p>",
		`id="answerPanel"`,
		"/questions/" + idString(q.ID) + "/updates",
		"guide.pdf",
		"notes.txt",
		"data-signals",
		"/reload",
		"Просмотров: 1",
	} {
		assert.Contains(t, body, want)
	}

	doc, err := ParseDocument(body)
	require.NoError(t, err)
	assertAnswerControls(t, doc, true)
	assert.Len(t, fileRowIDs(doc), 2)

	// The session cookie and the readable token cookie are issued.
	var names []string
	for _, c := range rec.Result().Cookies() {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "csrftoken")
}

func TestQuestionPage_NoAnswer(t *testing.T) {
	h, fixture := setupTestHandlers(t, true, openQuestion)
	q := fixture.Questions[0]

	req := features.RequestWithPathParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", idString(q.ID))
	rec := httptest.NewRecorder()
	h.QuestionPage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	doc, err := ParseDocument(rec.Body.String())
	require.NoError(t, err)
	assertAnswerControls(t, doc, false)
	assert.Equal(t, NoFilesText, doc.Find("#"+IDFiles).Text())
	assert.Equal(t, "Ответ отсутствует", doc.Find("#"+IDAnswerContent).Text())
}

func TestQuestionPage_Errors(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{name: "unknown question", id: "999", wantStatus: http.StatusNotFound},
		{name: "non-numeric id", id: "abc", wantStatus: http.StatusBadRequest},
		{name: "zero id", id: "0", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupTestHandlers(t, true)
			req := features.RequestWithPathParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", tt.id)
			rec := httptest.NewRecorder()

			h.QuestionPage(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

// =============================================================================
// Updates Tests - SSE endpoint for live re-sync
// =============================================================================

func TestUpdates_SendsPanelOnBroadcast(t *testing.T) {
	h, fixture := setupTestHandlers(t, true, answeredQuestion)
	q := fixture.Questions[0]

	req := httptest.NewRequest(http.MethodGet, "/questions/"+idString(q.ID)+"/updates", nil)
	req = features.RequestWithPathParam(req, "id", idString(q.ID))

	ctx, cancel := context.WithTimeout(req.Context(), 300*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Updates(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return fixture.Notifier.Listeners(q.ID) == 1
	}, time.Second, 5*time.Millisecond)
	fixture.Notifier.Broadcast(q.ID)

	<-done

	body := rec.Body.String()
	eventCount := strings.Count(body, "event:")
	assert.GreaterOrEqual(t, eventCount, 1, "should have at least 1 SSE event from broadcast")
	assert.Contains(t, body, "<p>Use the script</p>")
	assert.Contains(t, body, "guide.pdf")
	assert.Equal(t, 0, fixture.Notifier.Listeners(q.ID), "listener removed when the stream ends")
}

func TestUpdates_NoInitialState(t *testing.T) {
	h, fixture := setupTestHandlers(t, true, answeredQuestion)
	q := fixture.Questions[0]

	req := features.RequestWithPathParam(httptest.NewRequest(http.MethodGet, "/updates", nil), "id", idString(q.ID))
	ctx, cancel := context.WithTimeout(req.Context(), 50*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	h.Updates(rec, req)

	assert.Equal(t, 0, strings.Count(rec.Body.String(), "event:"), "should have no SSE events without broadcast")
}

func TestUpdates_IgnoresOtherQuestions(t *testing.T) {
	h, fixture := setupTestHandlers(t, true, answeredQuestion, openQuestion)
	watched, other := fixture.Questions[0], fixture.Questions[1]

	req := features.RequestWithPathParam(httptest.NewRequest(http.MethodGet, "/updates", nil), "id", idString(watched.ID))
	ctx, cancel := context.WithTimeout(req.Context(), 150*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		h.Updates(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return fixture.Notifier.Listeners(watched.ID) == 1
	}, time.Second, 5*time.Millisecond)
	fixture.Notifier.Broadcast(other.ID)

	<-done
	assert.Equal(t, 0, strings.Count(rec.Body.String(), "event:"))
}

// =============================================================================
// SSE action Tests
// =============================================================================

func postSSE(t *testing.T, handler http.HandlerFunc, contentType string, body io.Reader, params ...string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req = features.RequestWithPathParam(req, params...)
	rec := httptest.NewRecorder()

	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestSubmitAnswer_Signals(t *testing.T) {
	h, fixture := setupTestHandlers(t, true, openQuestion)
	q := fixture.Questions[0]
	updates := fixture.Notifier.Subscribe(q.ID)
	defer fixture.Notifier.Unsubscribe(q.ID, updates)

	body := postSSE(t, h.SubmitAnswer, "application/json",
		strings.NewReader(`{"answer":"<p>New answer</p><script>x()</script>","editing":true}`), "id", idString(q.ID))

	assert.Contains(t, body, "event: datastar-patch-elements")
	assert.Contains(t, body, "<p>New answer</p>")
	assert.NotContains(t, body, "<script>x()</script>")
	assert.Contains(t, body, "Ответ успешно сохранён")
	assert.Contains(t, body, "feedback-success")

	stored, err := fixture.Service.Snapshot(context.Background(), q.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasAnswer)
	assert.Equal(t, "tester", stored.AuthorName)

	select {
	case <-updates:
	default:
		t.Fatal("other pages should be told about the change")
	}
}

func TestSubmitAnswer_Multipart(t *testing.T) {
	h, fixture := setupTestHandlers(t, true, openQuestion)
	q := fixture.Questions[0]

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("answer", "<p>See attached</p>"))
	part, err := mw.CreateFormFile("attachments", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	body := postSSE(t, h.SubmitAnswer, mw.FormDataContentType(), &buf, "id", idString(q.ID))

	assert.Contains(t, body, "report.pdf")
	assert.Contains(t, body, "fa-file-pdf")
	assert.Len(t, attachmentIDs(t, fixture, q.ID), 1)
}

func TestSubmitAnswer_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantText    string
	}{
		{
			name:        "empty answer",
			contentType: "application/json",
			body:        `{"answer":"<p> </p>"}`,
			wantText:    "Ошибка: Ответ не может быть пустым",
		},
		{
			name:        "malformed signals",
			contentType: "application/json",
			body:        `{"answer":`,
			wantText:    "Ошибка: Некорректные данные запроса",
		},
		{
			name:        "urlencoded empty form",
			contentType: "application/x-www-form-urlencoded",
			body:        "answer=",
			wantText:    "Ошибка: Ответ не может быть пустым",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, fixture := setupTestHandlers(t, true, openQuestion)
			q := fixture.Questions[0]

			body := postSSE(t, h.SubmitAnswer, tt.contentType, strings.NewReader(tt.body), "id", idString(q.ID))

			assert.Contains(t, body, tt.wantText)
			assert.Contains(t, body, "feedback-error")
			assert.NotContains(t, body, `id="answerContent"`, "panel must not change")

			stored, err := fixture.Service.Snapshot(context.Background(), q.ID)
			require.NoError(t, err)
			assert.False(t, stored.HasAnswer)
		})
	}
}

func TestDeleteAnswer_SSE(t *testing.T) {
	h, fixture := setupTestHandlers(t, true, answeredQuestion)
	q := fixture.Questions[0]

	body := postSSE(t, h.DeleteAnswer, "application/json", strings.NewReader("{}"), "id", idString(q.ID))

	assert.Contains(t, body, NoAnswerHTML)
	assert.Contains(t, body, NoFilesText)
	assert.Contains(t, body, "Ответ успешно удалён")
	assert.Contains(t, body, "feedback-info")
	assert.Empty(t, attachmentIDs(t, fixture, q.ID))
}

func TestDeleteFile_SSE(t *testing.T) {
	tests := []struct {
		name       string
		reload     bool
		wantReload bool
	}{
		{name: "reloads the page", reload: true, wantReload: true},
		{name: "re-renders in place", reload: false, wantReload: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, fixture := setupTestHandlers(t, tt.reload, answeredQuestion)
			q := fixture.Questions[0]
			ids := attachmentIDs(t, fixture, q.ID)
			require.Len(t, ids, 2)

			body := postSSE(t, h.DeleteFile, "application/json", strings.NewReader("{}"),
				"id", idString(q.ID), "fileID", idString(ids[0]))

			assert.Contains(t, body, "Файл удалён")
			assert.Equal(t, tt.wantReload, strings.Contains(body, "window.location.reload()"))
			if !tt.wantReload {
				assert.Contains(t, body, `id="filesContainer"`)
				assert.NotContains(t, body, "guide.pdf")
				assert.Contains(t, body, "notes.txt")
			}
			assert.Equal(t, ids[1:], attachmentIDs(t, fixture, q.ID))
		})
	}
}

func TestDeleteFile_SSEUnknownFile(t *testing.T) {
	h, fixture := setupTestHandlers(t, true, answeredQuestion)
	q := fixture.Questions[0]

	body := postSSE(t, h.DeleteFile, "application/json", strings.NewReader("{}"),
		"id", idString(q.ID), "fileID", "999")

	assert.Contains(t, body, "Ошибка: Файл не найден")
	assert.NotContains(t, body, "window.location.reload()")
	assert.Len(t, attachmentIDs(t, fixture, q.ID), 2)
}

func TestDeleteFile_SSEFileOfAnotherQuestion(t *testing.T) {
	h, fixture := setupTestHandlers(t, true, answeredQuestion, openQuestion)
	owner, other := fixture.Questions[0], fixture.Questions[1]
	ids := attachmentIDs(t, fixture, owner.ID)

	body := postSSE(t, h.DeleteFile, "application/json", strings.NewReader("{}"),
		"id", idString(other.ID), "fileID", idString(ids[0]))

	assert.Contains(t, body, "Ошибка: Файл не найден")
	assert.NotContains(t, body, "window.location.reload()")
	assert.Equal(t, ids, attachmentIDs(t, fixture, owner.ID))
}

// =============================================================================
// JSON API Tests
// =============================================================================

func decodeReply(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var reply map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	return reply
}

func TestAPIAnswer(t *testing.T) {
	tests := []struct {
		name       string
		question   features.TestQuestion
		body       string
		wantStatus int
		wantReply  map[string]any
	}{
		{
			name:       "save with author",
			question:   openQuestion,
			body:       `{"answer":"<p>42</p>","author":"alice"}`,
			wantStatus: http.StatusOK,
			wantReply:  map[string]any{"success": true, "hasAnswer": true, "authorName": "alice", "bodyHtml": "<p>42</p>"},
		},
		{
			name:       "save uses default author",
			question:   openQuestion,
			body:       `{"answer":"<p>42</p>"}`,
			wantStatus: http.StatusOK,
			wantReply:  map[string]any{"success": true, "authorName": "tester"},
		},
		{
			name:       "delete answer",
			question:   answeredQuestion,
			body:       `{"action":"delete_answer"}`,
			wantStatus: http.StatusOK,
			wantReply:  map[string]any{"success": true, "hasAnswer": false, "message": "Ответ успешно удалён"},
		},
		{
			name:       "empty answer",
			question:   openQuestion,
			body:       `{"answer":""}`,
			wantStatus: http.StatusBadRequest,
			wantReply:  map[string]any{"success": false, "error": "Ответ не может быть пустым"},
		},
		{
			name:       "malformed json",
			question:   openQuestion,
			body:       `not json`,
			wantStatus: http.StatusBadRequest,
			wantReply:  map[string]any{"success": false, "error": "Некорректные данные запроса"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, fixture := setupTestHandlers(t, true, tt.question)
			q := fixture.Questions[0]

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req = features.RequestWithPathParam(req, "id", idString(q.ID))
			rec := httptest.NewRecorder()

			h.APIAnswer(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			reply := decodeReply(t, rec)
			for k, v := range tt.wantReply {
				assert.Equal(t, v, reply[k], "field %s", k)
			}
		})
	}
}

func TestAPIAnswer_UnknownQuestion(t *testing.T) {
	h, _ := setupTestHandlers(t, true)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"answer":"<p>x</p>"}`))
	req.Header.Set("Content-Type", "application/json")
	req = features.RequestWithPathParam(req, "id", "42")
	rec := httptest.NewRecorder()

	h.APIAnswer(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]any{"success": false, "error": "Вопрос не найден"}, decodeReply(t, rec))
}

func TestAPISnapshot(t *testing.T) {
	h, fixture := setupTestHandlers(t, true, answeredQuestion)
	q := fixture.Questions[0]

	req := features.RequestWithPathParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", idString(q.ID))
	rec := httptest.NewRecorder()
	h.APISnapshot(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	result, err := core.DecodeMutationResult(rec.Body.Bytes())
	require.NoError(t, err)
	assert.True(t, result.HasAnswer)
	assert.Equal(t, 2, result.TotalFiles)
	require.Len(t, result.Files, 2)
	assert.Equal(t, "guide.pdf", result.Files[0].Name)
	assert.Equal(t, "notes.txt", result.Files[1].Name)
}

func TestAPIDeleteFile(t *testing.T) {
	h, fixture := setupTestHandlers(t, true, answeredQuestion, openQuestion)
	q, other := fixture.Questions[0], fixture.Questions[1]
	ids := attachmentIDs(t, fixture, q.ID)

	tests := []struct {
		name       string
		target     string
		id         string
		wantStatus int
		wantReply  map[string]any
		wantFiles  int
	}{
		{
			name:       "file of another question",
			target:     "/?question=" + idString(other.ID),
			id:         idString(ids[0]),
			wantStatus: http.StatusNotFound,
			wantReply:  map[string]any{"success": false, "error": "Файл не найден"},
			wantFiles:  2,
		},
		{
			name:       "malformed question",
			target:     "/?question=abc",
			id:         idString(ids[0]),
			wantStatus: http.StatusBadRequest,
			wantReply:  map[string]any{"success": false, "error": "invalid question"},
			wantFiles:  2,
		},
		{
			name:       "existing file",
			target:     "/?question=" + idString(q.ID),
			id:         idString(ids[0]),
			wantStatus: http.StatusOK,
			wantReply:  map[string]any{"success": true},
			wantFiles:  1,
		},
		{
			name:       "already deleted",
			target:     "/",
			id:         idString(ids[0]),
			wantStatus: http.StatusNotFound,
			wantReply:  map[string]any{"success": false, "error": "Файл не найден"},
			wantFiles:  1,
		},
		{
			name:       "without question",
			target:     "/",
			id:         idString(ids[1]),
			wantStatus: http.StatusOK,
			wantReply:  map[string]any{"success": true},
			wantFiles:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := features.RequestWithPathParam(httptest.NewRequest(http.MethodPost, tt.target, nil), "id", tt.id)
			rec := httptest.NewRecorder()

			h.APIDeleteFile(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantReply, decodeReply(t, rec))
			assert.Len(t, attachmentIDs(t, fixture, q.ID), tt.wantFiles)
		})
	}
}

func TestDownload(t *testing.T) {
	h, fixture := setupTestHandlers(t, true, answeredQuestion)
	q := fixture.Questions[0]
	ids := attachmentIDs(t, fixture, q.ID)

	req := features.RequestWithPathParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", idString(ids[1]))
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "notes", rec.Body.String())
	assert.Equal(t, "attachment; filename=notes.txt", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))

	req = features.RequestWithPathParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "999")
	rec = httptest.NewRecorder()
	h.Download(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// Routes Tests - full stack through the router and the HTTP client
// =============================================================================

func setupTestServer(t *testing.T, questions ...features.TestQuestion) (*httptest.Server, *features.TestFixture) {
	t.Helper()
	fixture := features.SetupTestFixture(t, questions...)

	router := chi.NewRouter()
	require.NoError(t, SetupRoutes(router, testConfig(t, fixture, true)))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, fixture
}

func TestRoutes_RequireCSRFToken(t *testing.T) {
	srv, fixture := setupTestServer(t, answeredQuestion)
	q := fixture.Questions[0]

	resp, err := http.Post(srv.URL+"/qa/delete-file/1/", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Len(t, attachmentIDs(t, fixture, q.ID), 2)
}

func TestRoutes_HTTPClientRoundTrip(t *testing.T) {
	srv, fixture := setupTestServer(t, openQuestion)
	q := fixture.Questions[0]

	client, err := dispatch.NewHTTPClient(srv.URL, 5*time.Second, "cli")
	require.NoError(t, err)

	doc := newTestDocument(t, core.AnswerMutationResult{})
	view := NewView(newTestPanel(t), doc, q.ID, ViewOptions{
		Snapshot: func(ctx context.Context) (core.AnswerMutationResult, error) {
			return dispatch.New(dispatch.Config{Client: client}).Snapshot(ctx, q.ID)
		},
	})
	d := dispatch.New(dispatch.Config{Client: client, Tokens: client, View: view})
	ctx := context.Background()

	require.NoError(t, d.SubmitAnswer(ctx, q.ID, "<p>From the CLI</p>", []qa.Upload{
		features.TestUpload("a.txt", "alpha"),
		features.TestUpload("b.txt", "beta"),
	}))
	assert.Equal(t, "From the CLI", doc.Find("#"+IDAnswerContent).Text())
	assert.Equal(t, "cli", doc.Find("#"+IDAnswerAuthor).Text())

	ids := attachmentIDs(t, fixture, q.ID)
	require.Len(t, ids, 2)
	assert.Len(t, fileRowIDs(doc), 2)

	require.NoError(t, d.DeleteFile(ctx, q.ID, ids[0]))
	assert.Equal(t, []string{"file-" + idString(ids[1])}, fileRowIDs(doc))

	require.NoError(t, d.DeleteAnswer(ctx, q.ID))
	assertAnswerControls(t, doc, false)
	assert.Empty(t, attachmentIDs(t, fixture, q.ID))

	assert.Equal(t, []string{"Ответ успешно сохранён", "Файл удалён", "Ответ успешно удалён"}, feedbackTexts(doc))
}
