package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Answer mutation contract
// =============================================================================

// ErrMalformedResult is returned when a mutation result cannot be decoded or
// lacks fields required for rendering.
var ErrMalformedResult = errors.New("malformed mutation result")

// FileDescriptor describes one attachment of the current answer as it is shown
// in the file list. Size is pre-formatted by the server.
type FileDescriptor struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Size      string `json:"size"`
	URL       string `json:"url"`
	IconClass string `json:"iconClass"`
}

// AnswerMutationResult is the authoritative state of one question's answer
// after a create, update or delete. It is produced by the server and consumed
// once by the answer panel.
type AnswerMutationResult struct {
	HasAnswer  bool             `json:"hasAnswer"`
	BodyHTML   string           `json:"bodyHtml"`
	AuthorName string           `json:"authorName"`
	UpdatedAt  string           `json:"updatedAt"`
	Files      []FileDescriptor `json:"files"`
	TotalFiles int              `json:"totalFiles"`
	Message    string           `json:"message"`
}

// StatusResponse is the envelope used by mutation endpoints to report success
// or a user-facing error.
type StatusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// MutationReply is the reply of an answer mutation endpoint: the status
// envelope, plus the new state on success.
type MutationReply struct {
	StatusResponse
	*AnswerMutationResult
}

// DecodeMutationResult parses a JSON mutation result. Unknown fields are
// ignored. When hasAnswer is true the body, author, timestamp and message must
// be present; files and totalFiles may be omitted.
func DecodeMutationResult(data []byte) (AnswerMutationResult, error) {
	var raw struct {
		HasAnswer  *bool            `json:"hasAnswer"`
		BodyHTML   *string          `json:"bodyHtml"`
		AuthorName *string          `json:"authorName"`
		UpdatedAt  *string          `json:"updatedAt"`
		Files      []FileDescriptor `json:"files"`
		TotalFiles *int             `json:"totalFiles"`
		Message    *string          `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return AnswerMutationResult{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}

	if raw.HasAnswer == nil {
		return AnswerMutationResult{}, fmt.Errorf("%w: missing hasAnswer", ErrMalformedResult)
	}

	if *raw.HasAnswer {
		var missing []string
		if raw.BodyHTML == nil {
			missing = append(missing, "bodyHtml")
		}
		if raw.AuthorName == nil {
			missing = append(missing, "authorName")
		}
		if raw.UpdatedAt == nil {
			missing = append(missing, "updatedAt")
		}
		if raw.Message == nil {
			missing = append(missing, "message")
		}
		if len(missing) > 0 {
			return AnswerMutationResult{}, fmt.Errorf("%w: missing %s", ErrMalformedResult, strings.Join(missing, ", "))
		}
	}

	result := AnswerMutationResult{
		HasAnswer:  *raw.HasAnswer,
		BodyHTML:   deref(raw.BodyHTML),
		AuthorName: deref(raw.AuthorName),
		UpdatedAt:  deref(raw.UpdatedAt),
		Files:      raw.Files,
		Message:    deref(raw.Message),
	}
	if raw.TotalFiles != nil {
		result.TotalFiles = *raw.TotalFiles
	} else {
		result.TotalFiles = len(raw.Files)
	}

	return result, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
