package errs

import (
	"fmt"
	"strings"
)

// regenerateHint is appended to authentication failures; a rotated or revoked key
// looks identical to a bad signature from this side.
const regenerateHint = "regenerate the service-account key if the problem persists"

// ConfigurationError reports a required setting that is absent.
type ConfigurationError struct {
	Key string // setting or env variable name(s)
	Msg string
}

func (e *ConfigurationError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("configuration: %s is not set", e.Key)
	}
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Msg)
}

// Is makes every ConfigurationError match ErrMissingConfig.
func (e *ConfigurationError) Is(target error) bool { return target == ErrMissingConfig }

// CredentialFormatError reports a signing key that is not a PEM block after normalization.
type CredentialFormatError struct {
	Source  string // env variable the value came from
	Missing string // "BEGIN", "END" or "BEGIN and END"
	Preview string // truncated, never the full key
}

func (e *CredentialFormatError) Error() string {
	return fmt.Sprintf("credential format: key from %s is missing the %s marker (got %s)",
		e.Source, e.Missing, e.Preview)
}

// AuthenticationError reports that a key could not be used or was rejected by the backend.
type AuthenticationError struct {
	Stage   string // "parse", "token" or "backend"
	Op      string
	KeyLen  int
	KeyHint string // short prefix/suffix of the key
	Err     error
}

func (e *AuthenticationError) Error() string {
	var b strings.Builder
	b.WriteString("authentication")
	if e.Op != "" {
		b.WriteString(" (" + e.Op + ")")
	}
	fmt.Fprintf(&b, " failed at %s stage", e.Stage)
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	if e.KeyLen > 0 {
		fmt.Fprintf(&b, " [key len=%d %s]", e.KeyLen, e.KeyHint)
	}
	b.WriteString("; " + regenerateHint)
	return b.String()
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// NotFoundError reports a remote resource that no longer exists.
type NotFoundError struct {
	Kind string // "file", "folder", "spreadsheet"
	ID   string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Is makes every NotFoundError match ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// UploadError is a generic remote failure during a file, folder or spreadsheet mutation.
type UploadError struct {
	Op   string
	Name string
	Err  error
}

func (e *UploadError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// FormattingError reports a failed header styling call. Callers log and drop it.
type FormattingError struct {
	SpreadsheetID string
	Err           error
}

func (e *FormattingError) Error() string {
	return fmt.Sprintf("format header of %s: %v", e.SpreadsheetID, e.Err)
}

func (e *FormattingError) Unwrap() error { return e.Err }

// Preview returns a diagnostic excerpt of a secret: a few leading and trailing
// characters plus the total length.
func Preview(s string) string {
	const head, tail = 12, 8
	if len(s) <= head+tail {
		return fmt.Sprintf("%d chars", len(s))
	}
	return fmt.Sprintf("%q...%q (%d chars)", s[:head], s[len(s)-tail:], len(s))
}
