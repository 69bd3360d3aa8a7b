package domain

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeAccessDenied          Code = "ACCESS_DENIED"
	CodeRequestNotAccepted    Code = "REQUEST_NOT_ACCEPTED"
	CodeConversationDeclined  Code = "CONVERSATION_DECLINED"
	CodeDeliveryBlocked       Code = "DELIVERY_BLOCKED"
	CodeRequestThrottled      Code = "REQUEST_THROTTLED"
	CodeAttachmentsNotAllowed Code = "ATTACHMENTS_NOT_ALLOWED"
	CodeRecipientArchived     Code = "RECIPIENT_ARCHIVED"
	CodeInternal              Code = "INTERNAL"
)

// Error is the only error type that crosses the service boundary. Message is
// safe to show to callers; Cause is internal and never serialized.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func E(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func AccessDenied(msg string) error    { return E(CodeAccessDenied, msg) }
func NotFound(msg string) error        { return E(CodeNotFound, msg) }
func InvalidArg(msg string) error      { return E(CodeInvalidArgument, msg) }
func Internal(msg string, cause error) error { return Wrap(CodeInternal, msg, cause) }

// CodeOf extracts the stable code from any error in the chain, defaulting to
// CodeInternal for untyped failures.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}
