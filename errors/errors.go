package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrInvalidToken   = fmt.Errorf("invalid or expired token")
	ErrNotParticipant = fmt.Errorf("user is not a participant of this chat")

	ErrMalformedFrame = fmt.Errorf("malformed frame")
	ErrEmptyBody      = fmt.Errorf("message body is empty")
	ErrBodyTooLarge   = fmt.Errorf("message body exceeds the maximum length")
	ErrPersistence    = fmt.Errorf("message persistence failed")

	ErrSlowConsumer       = fmt.Errorf("slow consumer")
	ErrConnectionReplaced = fmt.Errorf("connection replaced by a newer session")
	ErrStaleResume        = fmt.Errorf("last seen sequence is ahead of the chat head")
	ErrUnknownMessage     = fmt.Errorf("unknown message id")

	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrChatNotFound     = fmt.Errorf("chat not found")
	ErrNotGroupChat     = fmt.Errorf("operation is only valid for group chats")
	ErrSelfRemovalOnly  = fmt.Errorf("participants can only remove themselves")
	ErrDirectChatSize   = fmt.Errorf("a direct chat joins exactly two distinct users")
	ErrChatNameRequired = fmt.Errorf("group chats require a name")
)

// Is and As delegate to the standard library so callers that import this
// package never need a second errors import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }
