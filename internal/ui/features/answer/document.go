package answer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"

	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// ErrNoTarget is returned when a patch names an element the page lacks.
var ErrNoTarget = errors.New("no patch target")

// Document is an in-memory page that applies patches the way the browser
// does: elements are replaced by id and appends go to the selected element.
// It backs the terminal view.
type Document struct {
	mu      sync.Mutex
	doc     *goquery.Document
	reloads int
}

// NewDocument creates a Document holding the answer panel for result.
func NewDocument(questionID int64, result core.AnswerMutationResult) (*Document, error) {
	shell, err := renderString(PanelShell(questionID, result))
	if err != nil {
		return nil, err
	}
	return ParseDocument("<html><body>" + shell + "</body></html>")
}

// ParseDocument creates a Document from page markup.
func ParseDocument(page string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Patch replaces each top-level element of c with the page element of the
// same id.
func (d *Document) Patch(c templ.Component) error {
	frag, err := parseFragment(c)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var patchErr error
	frag.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		id, ok := el.Attr("id")
		if !ok || id == "" {
			patchErr = fmt.Errorf("patch element <%s> has no id", goquery.NodeName(el))
			return false
		}
		target := d.doc.Find("#" + id)
		if target.Length() == 0 {
			patchErr = fmt.Errorf("%w: #%s", ErrNoTarget, id)
			return false
		}
		outer, err := goquery.OuterHtml(el)
		if err != nil {
			patchErr = err
			return false
		}
		target.ReplaceWithHtml(outer)
		return true
	})
	return patchErr
}

// Append adds c as the last child of the element matching selector.
func (d *Document) Append(selector string, c templ.Component) error {
	html, err := renderString(c)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	target := d.doc.Find(selector)
	if target.Length() == 0 {
		return fmt.Errorf("%w: %s", ErrNoTarget, selector)
	}
	target.AppendHtml(html)
	return nil
}

// Reload counts a page reload request. The document itself is unchanged.
func (d *Document) Reload() error {
	d.mu.Lock()
	d.reloads++
	d.mu.Unlock()
	return nil
}

// Reloads returns how many reloads were requested.
func (d *Document) Reloads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reloads
}

// Find returns a copy of the elements matching selector, detached from the
// live page.
func (d *Document) Find(selector string) *goquery.Selection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find(selector).Clone()
}

// HTML returns the outer markup of the first element matching selector.
func (d *Document) HTML(selector string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoTarget, selector)
	}
	return goquery.OuterHtml(sel)
}

func renderString(c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func parseFragment(c templ.Component) (*goquery.Selection, error) {
	html, err := renderString(c)
	if err != nil {
		return nil, err
	}
	frag, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + html + "</body></html>"))
	if err != nil {
		return nil, fmt.Errorf("parse patch: %w", err)
	}
	return frag.Find("body").Children(), nil
}
