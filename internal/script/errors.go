package script

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

var (
	// ErrSetup is returned when the interpreter cannot be created or initialized.
	ErrSetup = errors.New("script engine setup failed")

	// ErrNotSetUp is returned by Cleanup on an engine that was never set up
	// or has already been cleaned up.
	ErrNotSetUp = errors.New("script engine not set up")
)

// ErrorKind classifies a script failure.
type ErrorKind string

const (
	KindSyntax  ErrorKind = "syntax"
	KindFile    ErrorKind = "file"
	KindRuntime ErrorKind = "runtime"
	KindPanic   ErrorKind = "panic"
)

// ScriptError is an error raised inside the interpreter while loading or running a script.
type ScriptError struct {
	Kind       ErrorKind
	Script     string
	Message    string
	StackTrace string
	Cause      error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s error in %s: %s", e.Kind, e.Script, e.Message)
}

func (e *ScriptError) Unwrap() error {
	return e.Cause
}

// IsScriptError reports whether err is or wraps a *ScriptError.
func IsScriptError(err error) bool {
	var se *ScriptError
	return errors.As(err, &se)
}

// newScriptError converts an error returned by gopher-lua into a *ScriptError.
func newScriptError(script string, err error) *ScriptError {
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return &ScriptError{Kind: KindRuntime, Script: script, Message: err.Error(), Cause: err}
	}

	se := &ScriptError{
		Kind:       KindRuntime,
		Script:     script,
		StackTrace: apiErr.StackTrace,
		Cause:      apiErr.Cause,
	}
	switch apiErr.Type {
	case lua.ApiErrorSyntax:
		se.Kind = KindSyntax
	case lua.ApiErrorFile:
		se.Kind = KindFile
	case lua.ApiErrorPanic:
		se.Kind = KindPanic
	}
	if apiErr.Object != nil {
		se.Message = apiErr.Object.String()
	} else {
		se.Message = apiErr.Error()
	}
	return se
}
