// Package errors defines the typed domain errors returned by the group
// engine. Validation kinds are never retried; TransportTimeout and
// InconsistentState ask the caller to retry the whole operation later.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind string

const (
	KindGroupFull          Kind = "GroupFull"
	KindGroupLocked        Kind = "GroupLocked"
	KindAlreadyMember      Kind = "AlreadyMember"
	KindNotLeader          Kind = "NotLeader"
	KindLeaderMustTransfer Kind = "LeaderMustTransfer"
	KindEmptyGroup         Kind = "EmptyGroup"
	KindCannotKickSelf     Kind = "CannotKickSelf"
	KindCannotKickLeader   Kind = "CannotKickLeader"
	KindNotFound           Kind = "NotFound"
	KindDuplicateName      Kind = "DuplicateName"
	KindInvalidInput       Kind = "InvalidInput"
	KindForbidden          Kind = "Forbidden"
	KindTransportTimeout   Kind = "TransportTimeout"
	KindInconsistentState  Kind = "InconsistentState"
)

var messages = map[Kind]string{
	KindGroupFull:          "This group is full.",
	KindGroupLocked:        "This group is locked and not accepting new members.",
	KindAlreadyMember:      "You already belong to a group in this course.",
	KindNotLeader:          "Only the group leader can do this.",
	KindLeaderMustTransfer: "Transfer leadership to another member before leaving.",
	KindEmptyGroup:         "The group has no members.",
	KindCannotKickSelf:     "You cannot remove yourself; leave the group instead.",
	KindCannotKickLeader:   "The leader cannot be removed; transfer leadership first.",
	KindNotFound:           "Group or member not found.",
	KindDuplicateName:      "A group with this name already exists in the course.",
	KindInvalidInput:       "The request is invalid.",
	KindForbidden:          "You don't have permission to do this.",
	KindTransportTimeout:   "The group service did not respond. Please try again.",
	KindInconsistentState:  "The group is temporarily inconsistent. Please retry later.",
}

// Error is a domain error with enough context to render a message and
// to log where it came from.
type Error struct {
	Kind    Kind
	Op      string
	GroupID string
	UserID  string
	Detail  string
	Err     error
}

// New returns an *Error of the given kind.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap returns an *Error of the given kind wrapping err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithGroup sets the group id.
func (e *Error) WithGroup(groupID string) *Error {
	e.GroupID = groupID
	return e
}

// WithUser sets the user id.
func (e *Error) WithUser(userID string) *Error {
	e.UserID = userID
	return e
}

// WithDetail sets a human-readable detail that replaces the default message.
func (e *Error) WithDetail(format string, args ...any) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so sentinels work with errors.Is. LeaderMustTransfer
// is a NotLeader-style precondition and also matches ErrNotLeader.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return e.Kind == KindLeaderMustTransfer && t.Kind == KindNotLeader
}

// Message returns the user-facing message.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return messages[e.Kind]
}

// Sentinels for errors.Is.
var (
	ErrGroupFull          = &Error{Kind: KindGroupFull}
	ErrGroupLocked        = &Error{Kind: KindGroupLocked}
	ErrAlreadyMember      = &Error{Kind: KindAlreadyMember}
	ErrNotLeader          = &Error{Kind: KindNotLeader}
	ErrLeaderMustTransfer = &Error{Kind: KindLeaderMustTransfer}
	ErrEmptyGroup         = &Error{Kind: KindEmptyGroup}
	ErrCannotKickSelf     = &Error{Kind: KindCannotKickSelf}
	ErrCannotKickLeader   = &Error{Kind: KindCannotKickLeader}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrDuplicateName      = &Error{Kind: KindDuplicateName}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrTransportTimeout   = &Error{Kind: KindTransportTimeout}
	ErrInconsistentState  = &Error{Kind: KindInconsistentState}
)

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return "Something went wrong. Please try again."
}

// IsValidation reports whether err is a domain validation failure that
// must be shown to the caller and never retried.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindGroupFull, KindGroupLocked, KindAlreadyMember, KindNotLeader,
		KindLeaderMustTransfer, KindEmptyGroup, KindCannotKickSelf,
		KindCannotKickLeader, KindDuplicateName, KindInvalidInput, KindForbidden:
		return true
	}
	return false
}

// IsRetryable reports whether the caller should retry the whole
// operation later.
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == KindTransportTimeout || k == KindInconsistentState
}
