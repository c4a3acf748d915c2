package answer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/leapstack-labs/answerdesk/internal/dispatch"
	"github.com/leapstack-labs/answerdesk/internal/ui/csrf"
	"github.com/leapstack-labs/answerdesk/pkg/core"
)

//go:generate templ generate

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

// FeedbackStyle selects how feedback messages look.
type FeedbackStyle string

// Feedback styles.
const (
	StyleToast  FeedbackStyle = "toast"
	StyleBanner FeedbackStyle = "banner"
)

// =============================================================================
// Actions
// =============================================================================

func postAction(path string) string {
	return fmt.Sprintf("@post('%s', {headers: {'%s': $csrf}})", path, csrf.HeaderName)
}

func deleteFileAction(questionID, fileID int64) string {
	return fmt.Sprintf("confirm('%s') && %s", dispatch.PromptDeleteFile,
		postAction(fmt.Sprintf("/questions/%d/files/%d/delete", questionID, fileID)))
}

func deleteAnswerAction(questionID int64) string {
	return fmt.Sprintf("confirm('%s') && %s", dispatch.PromptDeleteAnswer,
		postAction(fmt.Sprintf("/questions/%d/answer/delete", questionID)))
}

func submitAnswerAction(questionID int64) string {
	return fmt.Sprintf("@post('/questions/%d/answer', {contentType: 'form', headers: {'%s': $csrf}}); $editing = false",
		questionID, csrf.HeaderName)
}

func updatesAction(questionID int64) string {
	return fmt.Sprintf("@get('/questions/%d/updates')", questionID)
}

func dismissScript(after time.Duration) string {
	return fmt.Sprintf("setTimeout(() => el.remove(), %d)", after.Milliseconds())
}

// pageSignals is the initial Datastar signal set of the question page.
func pageSignals(csrfToken string) string {
	b, _ := json.Marshal(map[string]any{"csrf": csrfToken, "editing": false})
	return string(b)
}

func fileDOMID(id int64) string {
	return fmt.Sprintf("file-%d", id)
}

// =============================================================================
// Panel state
// =============================================================================

// panelState is what the panel shows for a result. A result without an
// answer always shows the placeholders.
type panelState struct {
	hasAnswer bool
	body      string
	author    string
	date      string
	files     []core.FileDescriptor
}

func stateOf(result core.AnswerMutationResult) panelState {
	if !result.HasAnswer {
		return panelState{body: NoAnswerHTML}
	}
	return panelState{
		hasAnswer: true,
		body:      result.BodyHTML,
		author:    result.AuthorName,
		date:      result.UpdatedAt,
		files:     result.Files,
	}
}

// input is the editor's initial text.
func (s panelState) input() string {
	if !s.hasAnswer {
		return ""
	}
	return s.body
}

func bannerClass(s core.Severity) string {
	switch s {
	case core.SeveritySuccess:
		return "success"
	case core.SeverityError:
		return "danger"
	default:
		return "info"
	}
}
