// Package core defines the shared language of the answerdesk system.
//
// This package contains:
//   - Domain entities (Question, Attachment)
//   - The answer mutation contract (AnswerMutationResult, FileDescriptor)
//   - Service interfaces (Store)
//   - Feedback severities
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
