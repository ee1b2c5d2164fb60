package installerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error surfaced by the install pipeline wraps exactly one
// of these so callers can classify it with errors.Is.
var (
	ErrCatalogUnavailable           = errors.New("package catalog unavailable")
	ErrDownloadFailed               = errors.New("download failed")
	ErrExtractionFailed             = errors.New("extraction failed")
	ErrConfigurationFailed          = errors.New("configuration failed")
	ErrInstallationValidationFailed = errors.New("installation validation failed")
	ErrPathValidationFailed         = errors.New("path validation failed")
	ErrOperationCancelled           = errors.New("operation cancelled")
)

var kinds = []error{
	ErrOperationCancelled,
	ErrCatalogUnavailable,
	ErrDownloadFailed,
	ErrExtractionFailed,
	ErrConfigurationFailed,
	ErrInstallationValidationFailed,
	ErrPathValidationFailed,
}

// Error carries the kind of failure, the component (package) it happened in
// and the underlying cause.
type Error struct {
	Kind      error
	Component string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Component != "" {
		fmt.Fprintf(&b, " [%s]", e.Component)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// New builds an *Error of the given kind.
func New(kind error, component, message string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Err: cause}
}

// Wrap classifies err under kind. A nil err yields nil. Cancellation always
// wins over kind, and an error that is already classified is returned as is.
func Wrap(kind error, component string, err error) error {
	if err == nil {
		return nil
	}
	if IsCancelled(err) {
		if errors.Is(err, ErrOperationCancelled) {
			return err
		}
		return Cancelled(component, err)
	}
	if KindOf(err) != nil {
		return err
	}
	return &Error{Kind: kind, Component: component, Err: err}
}

// Cancelled reports a user-requested stop.
func Cancelled(component string, cause error) error {
	return &Error{Kind: ErrOperationCancelled, Component: component, Err: cause}
}

// CheckContext returns a cancellation error when ctx is done.
func CheckContext(ctx context.Context, component string) error {
	if err := ctx.Err(); err != nil {
		return Cancelled(component, err)
	}
	return nil
}

// IsCancelled reports whether err stems from cancellation rather than failure.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrOperationCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// KindOf returns the taxonomy kind wrapped by err, or nil.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// ComponentOf returns the component recorded on the outermost *Error.
func ComponentOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Component
	}
	return ""
}

// Summary renders a short, human readable message for end users. Full detail
// belongs in the log.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	component := ComponentOf(err)
	subject := "the installation"
	if component != "" {
		subject = component
	}
	switch KindOf(err) {
	case ErrOperationCancelled:
		return "Installation was cancelled."
	case ErrCatalogUnavailable:
		return "The package catalog could not be loaded. Check your network connection or the bundled packages file."
	case ErrDownloadFailed:
		return fmt.Sprintf("Downloading %s failed. Check your network connection and try again.", subject)
	case ErrExtractionFailed:
		return fmt.Sprintf("Unpacking %s failed. The archive may be corrupt; delete it and download again.", subject)
	case ErrConfigurationFailed:
		return fmt.Sprintf("Configuring %s failed.", subject)
	case ErrInstallationValidationFailed:
		return fmt.Sprintf("Validation of %s failed after installation.", subject)
	case ErrPathValidationFailed:
		var e *Error
		if errors.As(err, &e) && e.Message != "" {
			return "Invalid installation directory: " + e.Message + "."
		}
		return "Invalid installation directory."
	}
	return err.Error()
}
