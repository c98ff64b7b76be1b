package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDispatch Phase = "dispatch" // argument validation and routing
	PhaseCommand  Phase = "command"  // command execution
	PhaseRegister Phase = "register" // module and command registration
	PhaseTeardown Phase = "teardown" // registry shutdown
	PhaseEngine   Phase = "engine"   // storage engine and other collaborators
	PhaseEval     Phase = "eval"     // script parsing and evaluation
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindArity             Kind = "wrong # args"
	KindUnknownSubcommand Kind = "unknown subcommand"
	KindUnknownFlag       Kind = "unknown flag"
	KindUnknownCommand    Kind = "unknown command"
	KindInvalidArgument   Kind = "invalid argument"
	KindNotFound          Kind = "not found"
	KindDuplicate         Kind = "already exists"
	KindReadOnly          Kind = "read-only"
	KindEngine            Kind = "engine failure"
	KindOutOfMemory       Kind = "out of memory"
	KindSyntax            Kind = "syntax error"
)

// Sentinels for errors.Is checks by kind.
var (
	ErrArity             = &Error{Kind: KindArity}
	ErrUnknownSubcommand = &Error{Kind: KindUnknownSubcommand}
	ErrUnknownFlag       = &Error{Kind: KindUnknownFlag}
	ErrUnknownCommand    = &Error{Kind: KindUnknownCommand}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrDuplicate         = &Error{Kind: KindDuplicate}
	ErrReadOnly          = &Error{Kind: KindReadOnly}
	ErrEngine            = &Error{Kind: KindEngine}
	ErrOutOfMemory       = &Error{Kind: KindOutOfMemory}
	ErrSyntax            = &Error{Kind: KindSyntax}
)

// Error is the structured error type used throughout the module layer
type Error struct {
	Cause   error
	Phase   Phase
	Kind    Kind
	Token   string
	Detail  string
	Command []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if len(e.Command) > 0 {
		b.WriteString(strings.Join(e.Command, " "))
		b.WriteString(": ")
	} else if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}

	b.WriteString(string(e.Kind))

	if e.Token != "" {
		b.WriteString(" ")
		b.WriteString(fmt.Sprintf("%q", e.Token))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Command sets the command words the error belongs to
func (b *Builder) Command(words ...string) *Builder {
	b.err.Command = words
	return b
}

// Token sets the offending argument
func (b *Builder) Token(tok string) *Builder {
	b.err.Token = tok
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Arity creates an argument count error; usage is the expected call shape
func Arity(cmd []string, usage string) *Error {
	return &Error{
		Phase:   PhaseDispatch,
		Kind:    KindArity,
		Command: cmd,
		Detail:  fmt.Sprintf("should be %q", usage),
	}
}

// UnknownSubcommand creates an error for a subcommand outside the closed set
func UnknownSubcommand(cmd []string, token string, valid []string) *Error {
	return &Error{
		Phase:   PhaseDispatch,
		Kind:    KindUnknownSubcommand,
		Command: cmd,
		Token:   token,
		Detail:  "must be one of " + strings.Join(valid, ", "),
	}
}

// UnknownFlag creates an error for an unrecognized flag token
func UnknownFlag(cmd []string, token string) *Error {
	return &Error{
		Phase:   PhaseDispatch,
		Kind:    KindUnknownFlag,
		Command: cmd,
		Token:   token,
	}
}

// UnknownCommand creates an error for a command name no module registered
func UnknownCommand(name string) *Error {
	return &Error{
		Phase: PhaseEval,
		Kind:  KindUnknownCommand,
		Token: name,
	}
}

// InvalidArgument creates an error for a malformed argument
func InvalidArgument(cmd []string, token, detail string) *Error {
	return &Error{
		Phase:   PhaseDispatch,
		Kind:    KindInvalidArgument,
		Command: cmd,
		Token:   token,
		Detail:  detail,
	}
}

// NotFound creates a not-found error
func NotFound(cmd []string, what, name string) *Error {
	return &Error{
		Phase:   PhaseCommand,
		Kind:    KindNotFound,
		Command: cmd,
		Token:   name,
		Detail:  what,
	}
}

// Duplicate creates an error for a name that is already registered
func Duplicate(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Token:  name,
		Detail: what,
	}
}

// ReadOnly creates an error for a mutation attempted on a read-only resource
func ReadOnly(cmd []string, name string) *Error {
	return &Error{
		Phase:   PhaseCommand,
		Kind:    KindReadOnly,
		Command: cmd,
		Token:   name,
		Detail:  "handle was opened for reading",
	}
}

// Engine wraps a collaborator failure, preserving its text as the cause
func Engine(cmd []string, detail string, cause error) *Error {
	return &Error{
		Phase:   PhaseEngine,
		Kind:    KindEngine,
		Command: cmd,
		Detail:  detail,
		Cause:   cause,
	}
}

// OutOfMemory creates an allocation failure error
func OutOfMemory(cmd []string, size int) *Error {
	return &Error{
		Phase:   PhaseCommand,
		Kind:    KindOutOfMemory,
		Command: cmd,
		Detail:  fmt.Sprintf("failed to allocate %d bytes", size),
	}
}

// Syntax creates a script parse error
func Syntax(detail string) *Error {
	return &Error{
		Phase:  PhaseEval,
		Kind:   KindSyntax,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}
