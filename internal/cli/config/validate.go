package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
	validFeedback   = []string{"toast", "banner"}
	validBackends   = []string{StorageLocal, StorageS3}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Database == "" {
		errs = append(errs, errors.New("database is required"))
	}
	if !oneOf(c.LogLevel, validLogLevels) {
		errs = append(errs, fmt.Errorf("log_level must be one of %s, got %q", strings.Join(validLogLevels, ", "), c.LogLevel))
	}
	if !oneOf(c.LogFormat, validLogFormats) {
		errs = append(errs, fmt.Errorf("log_format must be one of %s, got %q", strings.Join(validLogFormats, ", "), c.LogFormat))
	}

	if s := c.Server; s != nil && (s.Port < 0 || s.Port > 65535) {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", s.Port))
	}
	if ui := c.UI; ui != nil {
		if ui.FeedbackStyle != "" && !oneOf(ui.FeedbackStyle, validFeedback) {
			errs = append(errs, fmt.Errorf("ui.feedback_style must be one of %s, got %q", strings.Join(validFeedback, ", "), ui.FeedbackStyle))
		}
		if ui.DismissAfter < 0 {
			errs = append(errs, fmt.Errorf("ui.dismiss_after must not be negative"))
		}
	}

	if st := c.Storage; st != nil {
		if st.Backend != "" && !oneOf(st.Backend, validBackends) {
			errs = append(errs, fmt.Errorf("storage.backend must be one of %s, got %q", strings.Join(validBackends, ", "), st.Backend))
		}
		if st.MaxFileSize < 0 {
			errs = append(errs, fmt.Errorf("storage.max_file_size must not be negative"))
		}
		if st.Backend == StorageS3 && (st.S3 == nil || st.S3.Bucket == "") {
			errs = append(errs, errors.New("storage.s3.bucket is required for the s3 backend"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}
