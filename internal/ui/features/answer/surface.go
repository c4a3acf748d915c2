package answer

import (
	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"
)

// SSESurface patches a browser page over a Datastar event stream.
type SSESurface struct {
	sse *datastar.ServerSentEventGenerator
}

// NewSSESurface wraps sse.
func NewSSESurface(sse *datastar.ServerSentEventGenerator) *SSESurface {
	return &SSESurface{sse: sse}
}

// Patch morphs c into the page by element id.
func (s *SSESurface) Patch(c templ.Component) error {
	return s.sse.PatchElementTempl(c)
}

// Append appends c inside the element matching selector.
func (s *SSESurface) Append(selector string, c templ.Component) error {
	return s.sse.PatchElementTempl(c, datastar.WithSelector(selector), datastar.WithModeAppend())
}

// Reload reloads the page.
func (s *SSESurface) Reload() error {
	return s.sse.ExecuteScript("window.location.reload()")
}
