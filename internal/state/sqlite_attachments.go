package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/answerdesk/pkg/core"
)

const attachmentColumns = `id, question_id, name, storage_key, content_type, size, uploaded_by, uploaded_at`

// AddAttachment records a stored file against a question.
func (s *SQLiteStore) AddAttachment(a *core.Attachment) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	return insertAttachment(s.db, a)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertAttachment(db execer, a *core.Attachment) error {
	if a.UploadedAt.IsZero() {
		a.UploadedAt = time.Now().UTC()
	}

	res, err := db.Exec(
		`INSERT INTO attachments (question_id, name, storage_key, content_type, size, uploaded_by, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.QuestionID, a.Name, a.StorageKey, a.ContentType, a.Size, a.UploadedBy, toMillis(a.UploadedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to add attachment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read attachment id: %w", err)
	}
	a.ID = id
	return nil
}

// GetAttachment retrieves an attachment by ID.
func (s *SQLiteStore) GetAttachment(id int64) (*core.Attachment, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(`SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id)
	a, err := scanAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attachment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return a, nil
}

// ListAttachments returns the attachments of a question in insertion order.
func (s *SQLiteStore) ListAttachments(questionID int64) ([]*core.Attachment, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT `+attachmentColumns+` FROM attachments WHERE question_id = ? ORDER BY id`,
		questionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var attachments []*core.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

// DeleteAttachment removes an attachment row. The stored blob is not touched.
func (s *SQLiteStore) DeleteAttachment(id int64) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	res, err := s.db.Exec(`DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attachment %d: %w", id, ErrNotFound)
	}
	return nil
}

func scanAttachment(row rowScanner) (*core.Attachment, error) {
	var (
		a        core.Attachment
		uploaded int64
	)
	if err := row.Scan(
		&a.ID, &a.QuestionID, &a.Name, &a.StorageKey, &a.ContentType,
		&a.Size, &a.UploadedBy, &uploaded,
	); err != nil {
		return nil, err
	}
	a.UploadedAt = fromMillis(uploaded)
	return &a, nil
}
