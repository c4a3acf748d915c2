package term

import (
	"fmt"
	"io"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"

	"github.com/leapstack-labs/answerdesk/internal/ui/features/answer"
	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// controls are page elements that only make sense in a browser.
const controls = "button, form, input, textarea, script, a.file-download, i"

// Surface holds an answer panel in memory and prints it as Markdown.
type Surface struct {
	doc *answer.Document
}

var _ answer.Surface = (*Surface)(nil)

// NewSurface creates a Surface showing result.
func NewSurface(questionID int64, result core.AnswerMutationResult) (*Surface, error) {
	doc, err := answer.NewDocument(questionID, result)
	if err != nil {
		return nil, err
	}
	return &Surface{doc: doc}, nil
}

// Patch implements answer.Surface.
func (s *Surface) Patch(c templ.Component) error {
	return s.doc.Patch(c)
}

// Append implements answer.Surface.
func (s *Surface) Append(selector string, c templ.Component) error {
	return s.doc.Append(selector, c)
}

// Reload implements answer.Surface. Terminal views refresh in place, so a
// reload is only counted.
func (s *Surface) Reload() error {
	return s.doc.Reload()
}

// Document returns the underlying page.
func (s *Surface) Document() *answer.Document {
	return s.doc
}

// Markdown renders the panel without its controls.
func (s *Surface) Markdown() (string, error) {
	panel, err := s.doc.HTML("#" + answer.IDPanel)
	if err != nil {
		return "", err
	}

	page, err := goquery.NewDocumentFromReader(strings.NewReader(panel))
	if err != nil {
		return "", fmt.Errorf("parse panel: %w", err)
	}
	page.Find(controls).Remove()
	page.Find(".d-none").Remove()

	body, err := page.Find("body").Html()
	if err != nil {
		return "", err
	}
	md, err := htmltomarkdown.ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("convert panel: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// Print writes the panel to w.
func (s *Surface) Print(w io.Writer) error {
	md, err := s.Markdown()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, md)
	return err
}
