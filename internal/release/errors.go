package release

import (
	"errors"
	"fmt"
)

// SyntaxError reports a release specifier that could not be parsed.
type SyntaxError struct {
	Spec   string // the offending specifier string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid release specifier %q: %s", e.Spec, e.Reason)
}

// RefNotFoundError reports a branch, tag or commit that is absent from the
// repository snapshot.
type RefNotFoundError struct {
	Spec string // the specifier that referenced the missing revision
	Ref  string // the missing revision
	Err  error
}

func (e *RefNotFoundError) Error() string {
	return fmt.Sprintf("specifier %q: reference %q not found", e.Spec, e.Ref)
}

func (e *RefNotFoundError) Unwrap() error {
	return e.Err
}

// AmbiguousVersionError reports two specifiers resolving the same version to
// different commits with no explicit override to break the tie.
type AmbiguousVersionError struct {
	Version      string
	FirstCommit  string
	SecondCommit string
}

func (e *AmbiguousVersionError) Error() string {
	return fmt.Sprintf("version %q resolves to conflicting commits %s and %s",
		e.Version, e.FirstCommit, e.SecondCommit)
}

// IsSpecifierError reports whether err is one of the per-specifier
// diagnostics produced during resolution.
func IsSpecifierError(err error) bool {
	var syntaxErr *SyntaxError
	var refErr *RefNotFoundError
	var ambiguousErr *AmbiguousVersionError
	return errors.As(err, &syntaxErr) || errors.As(err, &refErr) || errors.As(err, &ambiguousErr)
}
