package data

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

// Standard errors that backend adapters should wrap.
var (
	// Path resolution errors
	ErrInvalidPath    = errors.New("folders: invalid path detected")
	ErrUnderspecified = errors.New("folders: path underspecified")
	ErrNotMounted     = errors.New("folders: path not mounted")
	ErrAlreadyMounted = errors.New("folders: path already mounted")
	ErrMountBusy      = errors.New("folders: mount point busy")

	// Backend errors
	ErrUnsupported = errors.New("folders: operation unsupported for this backend")
	ErrBackend     = errors.New("folders: backend request failed")
	ErrConfig      = errors.New("folders: invalid backend configuration")
	ErrProtected   = errors.New("folders: operation denied on configured services")
	ErrPartial     = errors.New("folders: partial result")

	// File operation errors
	ErrNotExist     = errors.New("folders: file does not exist")
	ErrExist        = errors.New("folders: file exists")
	ErrIsDirectory  = errors.New("folders: is a directory")
	ErrNotDirectory = errors.New("folders: not a directory")
	ErrReadOnly     = errors.New("folders: read-only filesystem")
	ErrTooLarge     = errors.New("folders: object exceeds backend size limit")

	// I/O errors
	ErrClosed = errors.New("folders: stream already closed")
)

// Kind classifies an error so callers can branch without string matching.
type Kind string

const (
	KindConfig      Kind = "config"
	KindNotFound    Kind = "not_found"
	KindWrongKind   Kind = "wrong_kind"
	KindExists      Kind = "exists"
	KindUnsupported Kind = "unsupported"
	KindBackend     Kind = "backend"
	KindPartial     Kind = "partial"
	KindInvalidPath Kind = "invalid_path"
	KindReadOnly    Kind = "read_only"
	KindProtected   Kind = "protected"
	KindNotMounted  Kind = "not_mounted"
)

var sentinelKinds = map[error]Kind{
	ErrInvalidPath:    KindInvalidPath,
	ErrUnderspecified: KindInvalidPath,
	ErrNotMounted:     KindNotMounted,
	ErrAlreadyMounted: KindExists,
	ErrMountBusy:      KindBackend,
	ErrUnsupported:    KindUnsupported,
	ErrBackend:        KindBackend,
	ErrConfig:         KindConfig,
	ErrProtected:      KindProtected,
	ErrPartial:        KindPartial,
	ErrNotExist:       KindNotFound,
	ErrExist:          KindExists,
	ErrIsDirectory:    KindWrongKind,
	ErrNotDirectory:   KindWrongKind,
	ErrReadOnly:       KindReadOnly,
	ErrTooLarge:       KindBackend,
	ErrClosed:         KindBackend,
}

// Error is the structured error returned by every operation.
// Err holds one of the package sentinels, Detail the backend-native cause.
type Error struct {
	Kind    Kind
	Op      string
	Path    string
	Message string
	Err     error
	Detail  error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("folders: ")
	if e.Op != "" {
		sb.WriteString(e.Op)
		if e.Path != "" {
			sb.WriteString(" ")
			sb.WriteString(e.Path)
		}
		sb.WriteString(": ")
	}

	switch {
	case e.Message != "":
		sb.WriteString(e.Message)
	case e.Err != nil:
		sb.WriteString(strings.TrimPrefix(e.Err.Error(), "folders: "))
	default:
		sb.WriteString(string(e.Kind))
	}

	if e.Detail != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Detail.Error())
	}
	return sb.String()
}

// Unwrap exposes both the sentinel and the native cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Detail != nil {
		errs = append(errs, e.Detail)
	}
	return errs
}

func (e *Error) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind    Kind   `json:"kind"`
		Op      string `json:"op,omitempty"`
		Path    string `json:"path,omitempty"`
		Message string `json:"message"`
		Detail  string `json:"detail,omitempty"`
	}{
		Kind: e.Kind,
		Op:   e.Op,
		Path: e.Path,
	}

	out.Message = e.Message
	if out.Message == "" && e.Err != nil {
		out.Message = strings.TrimPrefix(e.Err.Error(), "folders: ")
	}
	if e.Detail != nil {
		out.Detail = e.Detail.Error()
	}
	return json.Marshal(out)
}

// NewError builds a structured error around a sentinel.
// The kind is derived from the sentinel when it is a known one.
func NewError(sentinel error, op, path string, detail error) *Error {
	kind, ok := sentinelKinds[sentinel]
	if !ok {
		kind = KindBackend
	}

	return &Error{
		Kind:   kind,
		Op:     op,
		Path:   path,
		Err:    sentinel,
		Detail: detail,
	}
}

// WithMessage overrides the rendered message while keeping the kind.
func (e *Error) WithMessage(format string, args ...any) *Error {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

func NotFound(op, path string) error {
	return NewError(ErrNotExist, op, path, nil)
}

func Exists(op, path string) error {
	return NewError(ErrExist, op, path, nil)
}

func IsDirectory(op, path string) error {
	return NewError(ErrIsDirectory, op, path, nil)
}

func NotDirectory(op, path string) error {
	return NewError(ErrNotDirectory, op, path, nil)
}

func Unsupported(op, backend string) error {
	return NewError(ErrUnsupported, op, "", nil).WithMessage("operation '%s' unsupported for backend '%s'", op, backend)
}

func InvalidPath(op, path string, detail error) error {
	return NewError(ErrInvalidPath, op, path, detail)
}

func ConfigError(backend string, detail error) error {
	return NewError(ErrConfig, "configure", backend, detail)
}

// BackendError wraps a native client failure. Structured errors pass through untouched.
func BackendError(op, path string, err error) error {
	if err == nil {
		return nil
	}

	var structured *Error
	if errors.As(err, &structured) {
		return err
	}
	return NewError(ErrBackend, op, path, err)
}

// KindOf returns the classification of err, or an empty kind for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var structured *Error
	if errors.As(err, &structured) {
		return structured.Kind
	}

	for sentinel, kind := range sentinelKinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindBackend
}

// Errors collects multiple failures, for example from batch deletes.
type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.errors)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
