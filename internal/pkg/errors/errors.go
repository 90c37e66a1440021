package errors

import "errors"

type Kind int

const (
	KindServer Kind = iota
	KindValidation
	KindConflict
	KindInvalidCredentials
	KindNotFoundOrExpired
	KindUnauthorized
	KindTooMany
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindNotFoundOrExpired:
		return "not_found_or_expired"
	case KindUnauthorized:
		return "unauthorized"
	case KindTooMany:
		return "too_many"
	default:
		return "server"
	}
}

// Error is the only error type the auth service hands back to callers.
// Message is safe to show to the client; Err is kept for logs only.
type Error struct {
	Kind    Kind
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

// Is matches on kind so callers can compare against the sentinels below
// regardless of message or wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation         = &Error{Kind: KindValidation, Message: "All fields are required"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "User already exists"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "Invalid credentials"}
	ErrNotFoundOrExpired  = &Error{Kind: KindNotFoundOrExpired, Message: "Invalid or expired token"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "Unauthorized"}
	ErrTooMany            = &Error{Kind: KindTooMany, Message: "Too many requests"}
	ErrServer             = &Error{Kind: KindServer, Message: "Server error"}
)

// ErrNotFound is returned by stores when a lookup matches nothing. It never
// leaves the service layer.
var ErrNotFound = errors.New("not found")

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Server(err error) *Error {
	return &Error{Kind: KindServer, Message: ErrServer.Message, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServer
}

// PublicMessage returns the client-facing message for err. Anything that is
// not an *Error collapses to the generic server message.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindServer {
		return e.Message
	}
	return ErrServer.Message
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
