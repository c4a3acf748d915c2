package answer

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/leapstack-labs/answerdesk/internal/dispatch"
	"github.com/leapstack-labs/answerdesk/internal/qa"
	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// actionDeleteAnswer selects answer removal on the answer endpoint.
const actionDeleteAnswer = "delete_answer"

// =============================================================================
// JSON API
// =============================================================================

// APIAnswer saves or removes an answer: POST /qa/questions/{id}/answer/.
// The body is JSON or multipart; action=delete_answer removes the answer.
func (h *Handlers) APIAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	form, err := readAnswerForm(r)
	if err != nil {
		h.writeJSON(w, statusFor(err), core.MutationReply{
			StatusResponse: core.StatusResponse{Error: userMessage(err)},
		})
		return
	}
	defer form.close()

	var result core.AnswerMutationResult
	if form.action == actionDeleteAnswer {
		result, err = h.svc.DeleteAnswer(ctx, id)
	} else {
		author := form.author
		if author == "" {
			author = h.author
		}
		result, err = h.svc.SaveAnswer(ctx, id, form.answer, author, form.uploads)
	}
	if err == nil {
		h.notifier.Broadcast(id)
	}
	h.logFailure("answer mutation", err)
	h.writeJSON(w, statusFor(err), dispatch.AnswerReply(result, err))
}

// APISnapshot returns the current answer state: GET /qa/questions/{id}/answer/.
func (h *Handlers) APISnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.Snapshot(r.Context(), id)
	h.logFailure("answer snapshot", err)
	h.writeJSON(w, statusFor(err), dispatch.AnswerReply(result, err))
}

// APIDeleteFile removes an attachment: POST /qa/delete-file/{id}/. The
// optional question query parameter names the question the file must belong
// to.
func (h *Handlers) APIDeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var owner int64
	if q := r.URL.Query().Get("question"); q != "" {
		n, err := strconv.ParseInt(q, 10, 64)
		if err != nil || n <= 0 {
			h.writeJSON(w, http.StatusBadRequest, core.StatusResponse{Error: "invalid question"})
			return
		}
		owner = n
	}
	questionID, err := h.svc.DeleteFile(r.Context(), owner, id)
	if err == nil {
		h.notifier.Broadcast(questionID)
	}
	h.logFailure("file delete", err)
	h.writeJSON(w, statusFor(err), dispatch.StatusReply(err))
}

// =============================================================================
// Downloads
// =============================================================================

// Download serves an attachment: GET /qa/files/{id}/. Stores with public
// URLs redirect; others stream through the server.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	dl, err := h.svc.OpenFile(r.Context(), id)
	if err != nil {
		h.httpError(w, err)
		return
	}
	if dl.URL != "" {
		http.Redirect(w, r, dl.URL, http.StatusFound)
		return
	}
	defer dl.Body.Close()

	a := dl.Attachment
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	if a.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	}
	if _, err := io.Copy(w, dl.Body); err != nil {
		h.logger.Warn("download interrupted", "file_id", id, "error", err)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode reply", "error", err)
	}
}

func (h *Handlers) logFailure(op string, err error) {
	switch {
	case err == nil:
	case qa.IsUserError(err), errors.Is(err, errBadRequest):
		h.logger.Debug(op+" rejected", "error", err)
	default:
		h.logger.Error(op+" failed", "error", err)
	}
}
