// Package answer provides the question page and its answer panel: the
// server-driven view that keeps the panel in sync with answer mutations.
package answer

import (
	"github.com/a-h/templ"

	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// Element ids of the answer panel.
const (
	IDPanel         = "answerPanel"
	IDAnswerContent = "answerContent"
	IDAnswerAuthor  = "answerAuthor"
	IDAnswerDate    = "answerDate"
	IDFiles         = "filesContainer"
	IDAddButton     = "addAnswerBtn"
	IDEditButton    = "editAnswerBtn"
	IDDeleteButton  = "deleteAnswerBtn"
	IDAnswerInput   = "answerInput"
	IDFeedback      = "feedback"
)

// Placeholder texts.
const (
	NoAnswerHTML = "<em>Ответ отсутствует</em>"
	NoFilesText  = "Нет прикреплённых файлов"
)

// Surface is the page a panel renders into.
type Surface interface {
	// Patch morphs each top-level element of c into the element with the
	// same id.
	Patch(c templ.Component) error
	// Append adds c as the last child of the element matching selector.
	Append(selector string, c templ.Component) error
	// Reload reloads the whole page.
	Reload() error
}

// Signals are the Datastar signals posted by the answer form. Action and
// Author are only sent by API clients.
type Signals struct {
	Answer string `json:"answer"`
	Action string `json:"action,omitempty"`
	Author string `json:"author,omitempty"`
}

// PageData is everything the question page needs.
type PageData struct {
	Question  *core.Question
	Result    core.AnswerMutationResult
	CSRFToken string
	IsDev     bool
}
