package resources

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandler_ServesStylesheet(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/static/"+Stylesheet, nil)
	rec := httptest.NewRecorder()

	Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".feedback-success")
}

func TestStaticPath(t *testing.T) {
	assert.True(t, strings.HasPrefix(StaticPath(Stylesheet), "/static/"+Stylesheet))
	assert.Equal(t, "/static/missing.css", StaticPath("missing.css"))
}

func TestIsAsset(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"static/answerdesk.css", true},
		{"app.js", true},
		{"notes.txt", false},
		{"dir.css/readme", false},
		{"Makefile", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAsset(tt.name))
		})
	}
}
