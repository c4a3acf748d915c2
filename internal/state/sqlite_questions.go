package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/answerdesk/pkg/core"
)

const questionColumns = `id, title, content, answer, answer_author, is_published, views, created_at, updated_at`

// CreateQuestion inserts a new question and fills in its ID and timestamps.
func (s *SQLiteStore) CreateQuestion(q *core.Question) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now

	res, err := s.db.Exec(
		`INSERT INTO questions (title, content, answer, answer_author, is_published, views, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Title, q.Content, q.Answer, q.AnswerAuthor, boolToInt(q.IsPublished), q.Views,
		toMillis(q.CreatedAt), toMillis(q.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read question id: %w", err)
	}
	q.ID = id
	return nil
}

// GetQuestion retrieves a question by ID.
func (s *SQLiteStore) GetQuestion(id int64) (*core.Question, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("question %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return q, nil
}

// ListQuestions returns all published questions, newest first.
func (s *SQLiteStore) ListQuestions() ([]*core.Question, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT ` + questionColumns + ` FROM questions WHERE is_published = 1 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var questions []*core.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// IncrementViews bumps the view counter of a question.
func (s *SQLiteStore) IncrementViews(id int64) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	res, err := s.db.Exec(`UPDATE questions SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetAnswer replaces the answer of a question and returns the updated row.
func (s *SQLiteStore) SetAnswer(id int64, body, author string) (*core.Question, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	if err := updateAnswer(s.db, id, body, author); err != nil {
		return nil, err
	}
	return s.GetQuestion(id)
}

// SaveAnswer replaces the answer of a question and inserts attachments in a
// single transaction. Nothing is written if any statement fails.
func (s *SQLiteStore) SaveAnswer(id int64, body, author string, attachments []*core.Attachment) (*core.Question, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := updateAnswer(tx, id, body, author); err != nil {
		return nil, err
	}
	for _, a := range attachments {
		a.QuestionID = id
		if err := insertAttachment(tx, a); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit answer: %w", err)
	}

	return s.GetQuestion(id)
}

func updateAnswer(db execer, id int64, body, author string) error {
	res, err := db.Exec(
		`UPDATE questions SET answer = ?, answer_author = ?, updated_at = ? WHERE id = ?`,
		body, author, toMillis(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set answer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question %d: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (*core.Question, error) {
	var (
		q                core.Question
		published        int64
		created, updated int64
	)
	if err := row.Scan(
		&q.ID, &q.Title, &q.Content, &q.Answer, &q.AnswerAuthor,
		&published, &q.Views, &created, &updated,
	); err != nil {
		return nil, err
	}
	q.IsPublished = published != 0
	q.CreatedAt = fromMillis(created)
	q.UpdatedAt = fromMillis(updated)
	return &q, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
