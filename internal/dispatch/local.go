package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/leapstack-labs/answerdesk/internal/qa"
	"github.com/leapstack-labs/answerdesk/pkg/core"
)

// LocalClient runs mutations in-process against a qa.Service and replies
// with the same JSON the HTTP API sends.
type LocalClient struct {
	svc      *qa.Service
	author   string
	logger   *slog.Logger
	onChange func(questionID int64)
}

// NewLocalClient creates a LocalClient. Answers are saved as author.
// onChange, if set, is called after every successful mutation.
func NewLocalClient(svc *qa.Service, author string, logger *slog.Logger, onChange func(questionID int64)) *LocalClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LocalClient{svc: svc, author: author, logger: logger, onChange: onChange}
}

// DeleteFile deletes a file of the answer to questionID. The token is
// ignored.
func (c *LocalClient) DeleteFile(ctx context.Context, questionID, fileID int64, _ string) ([]byte, error) {
	owner, err := c.svc.DeleteFile(ctx, questionID, fileID)
	if err != nil {
		return c.encode(StatusReply(err))
	}
	c.changed(owner)
	return c.encode(core.StatusResponse{Success: true})
}

// SaveAnswer saves an answer. The token is ignored.
func (c *LocalClient) SaveAnswer(ctx context.Context, questionID int64, body string, uploads []qa.Upload, _ string) ([]byte, error) {
	result, err := c.svc.SaveAnswer(ctx, questionID, body, c.author, uploads)
	if err == nil {
		c.changed(questionID)
	}
	return c.encode(AnswerReply(result, err))
}

// DeleteAnswer deletes an answer. The token is ignored.
func (c *LocalClient) DeleteAnswer(ctx context.Context, questionID int64, _ string) ([]byte, error) {
	result, err := c.svc.DeleteAnswer(ctx, questionID)
	if err == nil {
		c.changed(questionID)
	}
	return c.encode(AnswerReply(result, err))
}

// Snapshot returns the current answer state.
func (c *LocalClient) Snapshot(ctx context.Context, questionID int64) ([]byte, error) {
	result, err := c.svc.Snapshot(ctx, questionID)
	return c.encode(AnswerReply(result, err))
}

func (c *LocalClient) changed(questionID int64) {
	if c.onChange != nil {
		c.onChange(questionID)
	}
}

func (c *LocalClient) encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// StatusReply builds the status envelope for err. Internal errors are
// reported with a generic message.
func StatusReply(err error) core.StatusResponse {
	if err == nil {
		return core.StatusResponse{Success: true}
	}
	return core.StatusResponse{Success: false, Error: qa.UserMessage(err)}
}

// AnswerReply builds the reply of an answer mutation.
func AnswerReply(result core.AnswerMutationResult, err error) core.MutationReply {
	if err != nil {
		return core.MutationReply{StatusResponse: StatusReply(err)}
	}
	return core.MutationReply{
		StatusResponse:       core.StatusResponse{Success: true},
		AnswerMutationResult: &result,
	}
}
