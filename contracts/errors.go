package contracts

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind int

const (
	NetworkError ErrorKind = iota + 1
	VerificationError
	FormatError
	FilesystemError
	NotFoundError
	CanceledError
)

func (this ErrorKind) String() string {
	switch this {
	case NetworkError:
		return "network"
	case VerificationError:
		return "verification"
	case FormatError:
		return "format"
	case FilesystemError:
		return "filesystem"
	case NotFoundError:
		return "not-found"
	case CanceledError:
		return "canceled"
	default:
		return "unknown"
	}
}

var (
	ErrNetwork      = &Error{Kind: NetworkError}
	ErrVerification = &Error{Kind: VerificationError}
	ErrFormat       = &Error{Kind: FormatError}
	ErrFilesystem   = &Error{Kind: FilesystemError}
	ErrNotFound     = &Error{Kind: NotFoundError}
	ErrCanceled     = &Error{Kind: CanceledError}
)

// Error is the one error type that crosses the worker boundary. errors.Is
// matches any two values of the same Kind, so callers can test against the
// Err* values above.
type Error struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

func (this *Error) Error() string {
	message := this.Kind.String() + " error"
	if this.Op != "" {
		message = this.Op + ": " + message
	}
	if this.Path != "" {
		message += fmt.Sprintf(" (%s)", this.Path)
	}
	if this.Err != nil {
		message += ": " + this.Err.Error()
	}
	return message
}

func (this *Error) Unwrap() error { return this.Err }

func (this *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Kind == this.Kind
}

func (this *Error) Retryable() bool { return this.Kind == NetworkError }

func NewError(kind ErrorKind, op, path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = CanceledError
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CanceledError
	}
	return 0
}

// UserMessage renders the single line shown to the user for a failed
// operation. The full error belongs in the log.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case NetworkError:
		return "Could not reach the download servers. Check your internet connection and try again."
	case VerificationError:
		return "The game files are out of sync with what was expected. Force-update the instance and try again."
	case FormatError:
		return "A downloaded file was not in the expected format. Nothing on disk was changed."
	case FilesystemError:
		return "A file could not be written: " + rootCause(err).Error()
	case NotFoundError:
		return "The requested version could not be found."
	case CanceledError:
		return "The operation was canceled."
	default:
		return err.Error()
	}
}

func rootCause(err error) error {
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return err
		}
		err = inner
	}
}
