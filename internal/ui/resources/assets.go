// Package resources serves the UI's static assets.
package resources

import "path/filepath"

// StaticDirectoryPath is the path to static assets from the project root.
const StaticDirectoryPath = "internal/ui/resources/static"

// Stylesheet is the page stylesheet.
const Stylesheet = "answerdesk.css"

// IsAsset reports whether a changed file should reload open pages.
func IsAsset(name string) bool {
	switch filepath.Ext(name) {
	case ".css", ".js", ".svg", ".png":
		return true
	}
	return false
}
