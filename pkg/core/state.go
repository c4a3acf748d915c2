package core

import "errors"

// ErrNotFound is returned by Store lookups that match no row.
var ErrNotFound = errors.New("not found")

// Store defines the interface for persistence operations.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Question operations
	CreateQuestion(q *Question) error
	GetQuestion(id int64) (*Question, error)
	ListQuestions() ([]*Question, error)
	IncrementViews(id int64) error

	// SetAnswer replaces the answer body and author and bumps updated_at.
	// An empty body clears the answer.
	SetAnswer(id int64, body, author string) (*Question, error)
	// SaveAnswer sets the answer and records new attachments atomically.
	SaveAnswer(id int64, body, author string, attachments []*Attachment) (*Question, error)

	// Attachment operations
	AddAttachment(a *Attachment) error
	GetAttachment(id int64) (*Attachment, error)
	ListAttachments(questionID int64) ([]*Attachment, error)
	DeleteAttachment(id int64) error
}
