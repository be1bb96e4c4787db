package model

import "errors"

// ErrorKind is the closed set of failure categories the service can report
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindParse
	KindDuplicateIdentity
	KindInvalidCredentials
	KindNoToken
	KindTokenExpired
	KindTokenInvalid
	KindUnknownAccount
	KindAccountDeactivated
	KindNotFound
	KindCurrentPasswordIncorrect
	KindPersistence
)

var kindNames = map[ErrorKind]string{
	KindUnknown:                  "unknown",
	KindValidation:               "validation",
	KindParse:                    "parse",
	KindDuplicateIdentity:        "duplicate_identity",
	KindInvalidCredentials:       "invalid_credentials",
	KindNoToken:                  "no_token",
	KindTokenExpired:             "token_expired",
	KindTokenInvalid:             "token_invalid",
	KindUnknownAccount:           "unknown_account",
	KindAccountDeactivated:       "account_deactivated",
	KindNotFound:                 "not_found",
	KindCurrentPasswordIncorrect: "current_password_incorrect",
	KindPersistence:              "persistence",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is a categorised failure. Message is safe to show to callers;
// Err holds the underlying cause for operators and is never rendered.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// holds regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Common errors used across the application
var (
	ErrInvalidCredentials       = &Error{Kind: KindInvalidCredentials, Message: "Invalid email or password"}
	ErrNoToken                  = &Error{Kind: KindNoToken, Message: "No authentication token provided"}
	ErrTokenExpired             = &Error{Kind: KindTokenExpired, Message: "Token expired"}
	ErrTokenInvalid             = &Error{Kind: KindTokenInvalid, Message: "Invalid token"}
	ErrUnknownAccount           = &Error{Kind: KindUnknownAccount, Message: "User not found"}
	ErrAccountDeactivated       = &Error{Kind: KindAccountDeactivated, Message: "Account deactivated"}
	ErrAccountNotFound          = &Error{Kind: KindNotFound, Message: "User not found"}
	ErrCurrentPasswordIncorrect = &Error{Kind: KindCurrentPasswordIncorrect, Message: "Current password is incorrect"}
	ErrDuplicateIdentity        = &Error{Kind: KindDuplicateIdentity, Message: "Username or email already exists"}
	ErrUsernameTaken            = &Error{Kind: KindDuplicateIdentity, Message: "Username already taken"}
	ErrEmailTaken               = &Error{Kind: KindDuplicateIdentity, Message: "Email already taken"}
)

// Validation returns a client-fixable input error
func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// Parse returns an error for a request body that could not be decoded
func Parse(err error) error {
	return &Error{Kind: KindParse, Message: "Invalid JSON in request body", Err: err}
}

// Persistence wraps a storage failure. Errors that already carry a kind
// pass through unchanged.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return &Error{Kind: KindPersistence, Message: "Internal server error", Err: err}
}
