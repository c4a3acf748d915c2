package qa

import (
	"fmt"
	"path"
	"strings"
)

// DefaultMaxFileSize is the attachment size limit.
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

var allowedExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".txt": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".zip": true, ".rar": true,
	".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true,
}

var iconClasses = map[string]string{
	".pdf":  "fas fa-file-pdf text-danger",
	".doc":  "fas fa-file-word text-primary",
	".docx": "fas fa-file-word text-primary",
	".txt":  "fas fa-file-alt text-secondary",
	".jpg":  "fas fa-file-image text-success",
	".jpeg": "fas fa-file-image text-success",
	".png":  "fas fa-file-image text-success",
	".gif":  "fas fa-file-image text-success",
	".zip":  "fas fa-file-archive text-warning",
	".rar":  "fas fa-file-archive text-warning",
	".xls":  "fas fa-file-excel text-success",
	".xlsx": "fas fa-file-excel text-success",
	".ppt":  "fas fa-file-powerpoint text-danger",
	".pptx": "fas fa-file-powerpoint text-danger",
}

const defaultIconClass = "fas fa-file text-muted"

// Ext returns the lower-cased extension of name, including the dot.
func Ext(name string) string {
	return strings.ToLower(path.Ext(name))
}

// IconClass returns the icon class list for a file name.
func IconClass(name string) string {
	if c, ok := iconClasses[Ext(name)]; ok {
		return c
	}
	return defaultIconClass
}

// FormatSize renders a byte count with one decimal and a 1024-based unit.
func FormatSize(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f TB", size)
}

// ValidateUpload checks an attachment's size and extension.
func ValidateUpload(name string, size, limit int64) error {
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	if size > limit {
		return fmt.Errorf("%s: %w", name, ErrFileTooLarge)
	}
	if ext := Ext(name); !allowedExtensions[ext] {
		return &FileTypeError{Ext: ext}
	}
	return nil
}
