package core

import "time"

// Question is a published question together with its single answer.
// An empty Answer means the question has not been answered yet.
type Question struct {
	ID           int64
	Title        string
	Content      string
	Answer       string
	AnswerAuthor string
	IsPublished  bool
	Views        int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Attachment is a file attached to a question's answer.
type Attachment struct {
	ID          int64
	QuestionID  int64
	Name        string
	StorageKey  string
	ContentType string
	Size        int64
	UploadedBy  string
	UploadedAt  time.Time
}
