package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrUnresolvableKey    = fmt.Errorf("conversation key cannot be resolved")
	ErrUnknownMessage     = fmt.Errorf("message not found in any hydrated conversation")
	ErrUnknownTentative   = fmt.Errorf("tentative message not found")
	ErrConversationGone   = fmt.Errorf("conversation was torn down while loading")
	ErrEmptyConversation  = fmt.Errorf("empty conversation key")
	ErrFetchFailed        = fmt.Errorf("history fetch failed")
	ErrAckFailed          = fmt.Errorf("read acknowledgement failed")
	ErrSendFailed         = fmt.Errorf("message send failed")
	ErrNotConnected       = fmt.Errorf("realtime connection not established")
	ErrInvalidPayload     = fmt.Errorf("invalid event payload")
	ErrUnexpectedStatus   = fmt.Errorf("unexpected http status")
	ErrInvariantViolation = fmt.Errorf("timeline invariant violated")
	ErrInvalidToken       = fmt.Errorf("invalid access token")
	ErrTokenMismatch      = fmt.Errorf("access token belongs to another user")
	ErrTokenExpired       = fmt.Errorf("access token expired")
)
