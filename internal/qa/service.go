// Package qa implements answer and attachment mutations and builds the
// mutation results rendered by the answer panel.
package qa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/leapstack-labs/answerdesk/internal/blob"
	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// TimeLayout formats updatedAt in mutation results.
const TimeLayout = "02.01.2006 15:04"

// Upload is an attachment submitted with an answer.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Download is an attachment ready to be served. Exactly one of URL or Body
// is set.
type Download struct {
	Attachment *core.Attachment
	URL        string
	Body       io.ReadCloser
}

// Options configures a Service.
type Options struct {
	MaxFileSize int64
	Location    *time.Location
}

// Service owns answer and attachment state for questions.
type Service struct {
	store       core.Store
	blobs       blob.Store
	logger      *slog.Logger
	policy      *bluemonday.Policy
	maxFileSize int64
	loc         *time.Location
}

// NewService creates a Service.
func NewService(store core.Store, blobs blob.Store, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{
		store:       store,
		blobs:       blobs,
		logger:      logger,
		policy:      bluemonday.UGCPolicy(),
		maxFileSize: opts.MaxFileSize,
		loc:         opts.Location,
	}
}

// =============================================================================
// Questions
// =============================================================================

// CreateQuestion stores a new published question.
func (s *Service) CreateQuestion(_ context.Context, title, content string) (*core.Question, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("question title is required")
	}
	q := &core.Question{
		Title:       title,
		Content:     s.policy.Sanitize(content),
		IsPublished: true,
	}
	if err := s.store.CreateQuestion(q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// Question returns a question by id.
func (s *Service) Question(_ context.Context, id int64) (*core.Question, error) {
	q, err := s.store.GetQuestion(id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Questions lists published questions, newest first.
func (s *Service) Questions(context.Context) ([]*core.Question, error) {
	return s.store.ListQuestions()
}

// RecordView counts a page view of a question. Failures are only logged.
func (s *Service) RecordView(_ context.Context, id int64) {
	if err := s.store.IncrementViews(id); err != nil {
		s.logger.Warn("failed to record view", "question", id, "error", err)
	}
}

// =============================================================================
// Answers
// =============================================================================

// SaveAnswer creates or replaces the answer of a question and stores any
// uploads as new attachments. All uploads are validated before anything is
// written, and the answer and its new rows are committed together: a failed
// save leaves the question as it was.
func (s *Service) SaveAnswer(ctx context.Context, questionID int64, body, author string, uploads []Upload) (core.AnswerMutationResult, error) {
	body = s.policy.Sanitize(strings.TrimSpace(body))
	if !HasAnswerText(body) {
		return core.AnswerMutationResult{}, ErrEmptyAnswer
	}
	for _, u := range uploads {
		if err := ValidateUpload(u.Name, u.Size, s.maxFileSize); err != nil {
			return core.AnswerMutationResult{}, err
		}
	}

	if _, err := s.Question(ctx, questionID); err != nil {
		return core.AnswerMutationResult{}, err
	}

	files, err := s.putBlobs(ctx, questionID, author, uploads)
	if err != nil {
		return core.AnswerMutationResult{}, err
	}
	if _, err := s.store.SaveAnswer(questionID, body, author, files); err != nil {
		s.dropBlobs(ctx, files)
		if errors.Is(err, core.ErrNotFound) {
			return core.AnswerMutationResult{}, ErrQuestionNotFound
		}
		return core.AnswerMutationResult{}, fmt.Errorf("save answer: %w", err)
	}

	s.logger.Info("answer saved", "question", questionID, "author", author, "uploads", len(uploads))

	result, err := s.Snapshot(ctx, questionID)
	if err != nil {
		return core.AnswerMutationResult{}, err
	}
	result.Message = MsgAnswerSaved
	return result, nil
}

// putBlobs stores every upload and returns the attachment rows to record.
// On failure the blobs already written are removed.
func (s *Service) putBlobs(ctx context.Context, questionID int64, author string, uploads []Upload) ([]*core.Attachment, error) {
	files := make([]*core.Attachment, 0, len(uploads))
	for _, u := range uploads {
		key := blob.Key(questionID, u.Name)
		if err := s.blobs.Put(ctx, key, u.Body, u.Size, u.ContentType); err != nil {
			s.dropBlobs(ctx, files)
			return nil, fmt.Errorf("store %s: %w", u.Name, err)
		}
		files = append(files, &core.Attachment{
			QuestionID:  questionID,
			Name:        u.Name,
			StorageKey:  key,
			ContentType: u.ContentType,
			Size:        u.Size,
			UploadedBy:  author,
		})
	}
	return files, nil
}

func (s *Service) dropBlobs(ctx context.Context, files []*core.Attachment) {
	for _, a := range files {
		if err := s.blobs.Delete(ctx, a.StorageKey); err != nil {
			s.logger.Warn("failed to remove orphaned blob", "key", a.StorageKey, "error", err)
		}
	}
}

// DeleteAnswer clears the answer of a question and removes its attachments.
func (s *Service) DeleteAnswer(ctx context.Context, questionID int64) (core.AnswerMutationResult, error) {
	if _, err := s.Question(ctx, questionID); err != nil {
		return core.AnswerMutationResult{}, err
	}

	files, err := s.store.ListAttachments(questionID)
	if err != nil {
		return core.AnswerMutationResult{}, fmt.Errorf("list attachments: %w", err)
	}
	for _, f := range files {
		if err := s.removeAttachment(ctx, f); err != nil {
			return core.AnswerMutationResult{}, err
		}
	}

	q, err := s.store.SetAnswer(questionID, "", "")
	if err != nil {
		return core.AnswerMutationResult{}, fmt.Errorf("delete answer: %w", err)
	}

	s.logger.Info("answer deleted", "question", questionID, "files", len(files))

	return core.AnswerMutationResult{
		HasAnswer: false,
		UpdatedAt: s.formatTime(q.UpdatedAt),
		Files:     []core.FileDescriptor{},
		Message:   MsgAnswerDeleted,
	}, nil
}

// Snapshot returns the current state of a question's answer. Message is empty.
func (s *Service) Snapshot(ctx context.Context, questionID int64) (core.AnswerMutationResult, error) {
	q, err := s.Question(ctx, questionID)
	if err != nil {
		return core.AnswerMutationResult{}, err
	}

	files, err := s.store.ListAttachments(questionID)
	if err != nil {
		return core.AnswerMutationResult{}, fmt.Errorf("list attachments: %w", err)
	}

	descriptors := make([]core.FileDescriptor, 0, len(files))
	for _, f := range files {
		descriptors = append(descriptors, Describe(f))
	}

	result := core.AnswerMutationResult{
		HasAnswer:  HasAnswerText(q.Answer),
		UpdatedAt:  s.formatTime(q.UpdatedAt),
		Files:      descriptors,
		TotalFiles: len(descriptors),
	}
	if result.HasAnswer {
		result.BodyHTML = q.Answer
		result.AuthorName = q.AnswerAuthor
	}
	return result, nil
}

// =============================================================================
// Attachments
// =============================================================================

// DeleteFile removes one attachment of the answer to questionID and returns
// that question. A file attached to another question is reported as not
// found. A zero questionID skips the ownership check.
func (s *Service) DeleteFile(ctx context.Context, questionID, fileID int64) (int64, error) {
	a, err := s.store.GetAttachment(fileID)
	if errors.Is(err, core.ErrNotFound) {
		return 0, ErrFileNotFound
	}
	if err != nil {
		return 0, err
	}
	if questionID != 0 && a.QuestionID != questionID {
		s.logger.Warn("file belongs to another question", "file", fileID, "question", questionID, "owner", a.QuestionID)
		return 0, ErrFileNotFound
	}

	if err := s.removeAttachment(ctx, a); err != nil {
		return 0, err
	}
	s.logger.Info("file deleted", "file", fileID, "question", a.QuestionID, "name", a.Name)
	return a.QuestionID, nil
}

// removeAttachment deletes the row first; a leftover blob is only logged.
func (s *Service) removeAttachment(ctx context.Context, a *core.Attachment) error {
	if err := s.store.DeleteAttachment(a.ID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrFileNotFound
		}
		return fmt.Errorf("delete attachment %d: %w", a.ID, err)
	}
	if err := s.blobs.Delete(ctx, a.StorageKey); err != nil {
		s.logger.Warn("failed to remove blob", "key", a.StorageKey, "error", err)
	}
	return nil
}

// OpenFile prepares an attachment for download.
func (s *Service) OpenFile(ctx context.Context, fileID int64) (*Download, error) {
	a, err := s.store.GetAttachment(fileID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}

	url, err := s.blobs.URL(ctx, a.StorageKey)
	if err != nil {
		return nil, err
	}
	if url != "" {
		return &Download{Attachment: a, URL: url}, nil
	}

	body, err := s.blobs.Open(ctx, a.StorageKey)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Download{Attachment: a, Body: body}, nil
}

// Describe converts an attachment to its file list descriptor.
func Describe(a *core.Attachment) core.FileDescriptor {
	return core.FileDescriptor{
		ID:        a.ID,
		Name:      a.Name,
		Size:      FormatSize(a.Size),
		URL:       FileURL(a.ID),
		IconClass: IconClass(a.Name),
	}
}

// FileURL is the download path of an attachment.
func FileURL(id int64) string {
	return fmt.Sprintf("/qa/files/%d/", id)
}

// HasAnswerText reports whether answer markup contains visible text.
func HasAnswerText(html string) bool {
	if strings.TrimSpace(html) == "" {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return strings.TrimSpace(doc.Text()) != ""
}

func (s *Service) formatTime(t time.Time) string {
	return t.In(s.loc).Format(TimeLayout)
}
