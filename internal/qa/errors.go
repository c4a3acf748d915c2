package qa

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// Sentinel errors returned by Service.
var (
	ErrEmptyAnswer      = errors.New("answer is empty")
	ErrFileTooLarge     = errors.New("file too large")
	ErrFileType         = errors.New("file type not allowed")
	ErrQuestionNotFound = fmt.Errorf("question %w", core.ErrNotFound)
	ErrFileNotFound     = fmt.Errorf("file %w", core.ErrNotFound)
)

// FileTypeError reports an attachment with a disallowed extension.
type FileTypeError struct {
	Ext string
}

func (e *FileTypeError) Error() string {
	return fmt.Sprintf("file type %q not allowed", e.Ext)
}

// Is makes FileTypeError match ErrFileType.
func (e *FileTypeError) Is(target error) bool {
	return target == ErrFileType
}

// Messages shown to users.
const (
	MsgAnswerSaved     = "Ответ успешно сохранён"
	MsgAnswerDeleted   = "Ответ успешно удалён"
	MsgEmptyAnswer     = "Ответ не может быть пустым"
	MsgQuestionMissing = "Вопрос не найден"
	MsgFileMissing     = "Файл не найден"
	MsgFileTooLarge    = "Файл слишком большой. Максимум 5 МБ."
	MsgInternal        = "Внутренняя ошибка сервера"
)

// UserMessage maps an error returned by Service to the text shown to users.
// Unexpected errors map to a generic message; callers log the original.
func UserMessage(err error) string {
	var typeErr *FileTypeError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyAnswer):
		return MsgEmptyAnswer
	case errors.Is(err, ErrQuestionNotFound):
		return MsgQuestionMissing
	case errors.Is(err, ErrFileNotFound):
		return MsgFileMissing
	case errors.Is(err, ErrFileTooLarge):
		return MsgFileTooLarge
	case errors.As(err, &typeErr):
		return fmt.Sprintf("Тип файла %s не поддерживается.", typeErr.Ext)
	default:
		return MsgInternal
	}
}

// IsUserError reports whether err carries a message meant for the user
// rather than an internal failure.
func IsUserError(err error) bool {
	return errors.Is(err, ErrEmptyAnswer) ||
		errors.Is(err, core.ErrNotFound) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrFileType)
}
