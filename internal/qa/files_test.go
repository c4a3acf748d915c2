package qa

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/answerdesk/pkg/core"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.0 B"},
		{512, "512.0 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1258291, "1.2 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
		{3 * 1024 * 1024 * 1024 * 1024, "3.0 TB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSize(tt.in))
		})
	}
}

func TestIconClass(t *testing.T) {
	assert.Equal(t, "fas fa-file-pdf text-danger", IconClass("report.PDF"))
	assert.Equal(t, "fas fa-file-word text-primary", IconClass("letter.doc"))
	assert.Equal(t, "fas fa-file-image text-success", IconClass("a.b.jpeg"))
	assert.Equal(t, "fas fa-file text-muted", IconClass("Makefile"))
	assert.Equal(t, "fas fa-file text-muted", IconClass("run.exe"))
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		size    int64
		wantErr error
		wantMsg string
	}{
		{name: "ok", file: "notes.txt", size: 10},
		{name: "limit is inclusive", file: "scan.png", size: DefaultMaxFileSize},
		{name: "too large", file: "scan.png", size: DefaultMaxFileSize + 1, wantErr: ErrFileTooLarge, wantMsg: MsgFileTooLarge},
		{name: "bad type", file: "virus.exe", size: 1, wantErr: ErrFileType, wantMsg: "Тип файла .exe не поддерживается."},
		{name: "no extension", file: "README", size: 1, wantErr: ErrFileType, wantMsg: "Тип файла  не поддерживается."},
		{name: "doc is not allowed", file: "old.doc", size: 1, wantErr: ErrFileType, wantMsg: "Тип файла .doc не поддерживается."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.file, tt.size, 0)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsUserError(err))
			assert.Equal(t, tt.wantMsg, UserMessage(err))
		})
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, MsgEmptyAnswer, UserMessage(ErrEmptyAnswer))
	assert.Equal(t, MsgQuestionMissing, UserMessage(ErrQuestionNotFound))
	assert.Equal(t, MsgFileMissing, UserMessage(ErrFileNotFound))
	assert.Equal(t, MsgInternal, UserMessage(errors.New("disk on fire")))
	assert.True(t, errors.Is(ErrQuestionNotFound, core.ErrNotFound))
	assert.False(t, IsUserError(errors.New("disk on fire")))
}
