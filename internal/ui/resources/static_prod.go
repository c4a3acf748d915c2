//go:build !dev

package resources

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"io/fs"
	"net/http"
	"sync"
)

//go:embed static/*
var staticFS embed.FS

// Dir returns "": embedded assets cannot change at runtime.
func Dir() string {
	return ""
}

// Handler returns an HTTP handler for serving static files.
// In production mode, files are embedded in the binary.
func Handler() http.Handler {
	fsys, _ := fs.Sub(staticFS, "static")
	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(fsys)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Paths carry a content hash, so they can be cached forever.
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fileServer.ServeHTTP(w, r)
	})
}

var (
	versionsMu sync.Mutex
	versions   = map[string]string{}
)

// StaticPath returns the URL path for a static asset, versioned by content.
func StaticPath(path string) string {
	versionsMu.Lock()
	defer versionsMu.Unlock()

	v, ok := versions[path]
	if !ok {
		if data, err := staticFS.ReadFile("static/" + path); err == nil {
			sum := sha256.Sum256(data)
			v = hex.EncodeToString(sum[:4])
		}
		versions[path] = v
	}
	if v == "" {
		return "/static/" + path
	}
	return "/static/" + path + "?v=" + v
}
