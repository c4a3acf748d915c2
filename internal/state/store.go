// Package state provides persistence for questions, answers and attachments
// using SQLite.
//
// Schema changes are applied with goose migrations embedded in the binary.
package state

import "github.com/leapstack-labs/answerdesk/pkg/core"

// Store is an alias for core.Store.
type Store = core.Store

// ErrNotFound is an alias for core.ErrNotFound.
var ErrNotFound = core.ErrNotFound

var _ Store = (*SQLiteStore)(nil)
