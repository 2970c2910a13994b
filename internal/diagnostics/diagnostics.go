// Package diagnostics implements the error taxonomy of spec.md §7
// (Syntax/Lowering/Load/Compile/Runtime+subkinds/InternalInvariant), grounded
// on the teacher's internal/errors.SentraError (source location + call stack
// + source-line rendering), generalized to the fuller taxonomy and enriched
// with github.com/pkg/errors for cause chaining, github.com/google/uuid for
// per-run correlation IDs, and github.com/dustin/go-humanize for the
// human-readable duration/size fields a CLI report prints.
package diagnostics

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Kind is the top-level taxonomy of spec.md §7.
type Kind string

const (
	KindSyntax           Kind = "SyntaxError"
	KindLowering         Kind = "LoweringError"
	KindLoad             Kind = "LoadError"
	KindCompile          Kind = "CompileError"
	KindRuntime          Kind = "RuntimeError"
	KindInternalInvariant Kind = "InternalInvariantError"
)

// RuntimeSubkind refines KindRuntime per spec.md §7's runtime subkinds.
type RuntimeSubkind string

const (
	RuntimeNone           RuntimeSubkind = ""
	RuntimeDivisionByZero RuntimeSubkind = "DivisionByZero"
	RuntimeIndexOutOfBounds RuntimeSubkind = "IndexOutOfBounds"
	RuntimeTypeMismatch   RuntimeSubkind = "TypeMismatch"
	RuntimeMethodError    RuntimeSubkind = "MethodError"
	RuntimeUndefinedVar   RuntimeSubkind = "UndefinedVariable"
	RuntimeUserThrown     RuntimeSubkind = "UserThrown"
	RuntimeAssertion      RuntimeSubkind = "AssertionError"
)

// SourceLocation mirrors the teacher's SourceLocation, extended with a
// function name so nested call stacks are self-describing without a parallel
// StackFrame list for the common one-frame case.
type SourceLocation struct {
	File     string
	Line     int
	Column   int
	Function string
}

type StackFrame struct {
	Function string
	File     string
	Line     int
	Column   int
}

// Diagnostic is the single error type every pipeline stage raises, carrying
// enough context to render spec.md §7's caret-pointed source rendering plus a
// wrapped cause chain (via pkg/errors) for Go-level debugging.
type Diagnostic struct {
	Kind      Kind
	Subkind   RuntimeSubkind
	Message   string
	Location  SourceLocation
	CallStack []StackFrame
	Source    string
	RunID     uuid.UUID
	cause     error
}

func New(kind Kind, message string) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: message, RunID: uuid.New()}
}

func Wrap(kind Kind, cause error, message string) *Diagnostic {
	return &Diagnostic{Kind: kind, Message: message, RunID: uuid.New(), cause: errors.Wrap(cause, message)}
}

func (d *Diagnostic) WithLocation(loc SourceLocation) *Diagnostic {
	d.Location = loc
	return d
}

func (d *Diagnostic) WithSubkind(s RuntimeSubkind) *Diagnostic {
	d.Subkind = s
	return d
}

func (d *Diagnostic) WithSource(line string) *Diagnostic {
	d.Source = line
	return d
}

func (d *Diagnostic) PushFrame(f StackFrame) *Diagnostic {
	d.CallStack = append(d.CallStack, f)
	return d
}

func (d *Diagnostic) Unwrap() error { return d.cause }

// Error renders the diagnostic the way the teacher's SentraError.Error does:
// type/message header, source-pointer block, then a call stack.
func (d *Diagnostic) Error() string {
	var sb strings.Builder
	kindLabel := string(d.Kind)
	if d.Subkind != RuntimeNone {
		kindLabel = fmt.Sprintf("%s(%s)", d.Kind, d.Subkind)
	}
	sb.WriteString(fmt.Sprintf("%s: %s\n", kindLabel, d.Message))
	if d.Location.File != "" {
		sb.WriteString(fmt.Sprintf("  at %s:%d:%d", d.Location.File, d.Location.Line, d.Location.Column))
		if d.Location.Function != "" {
			sb.WriteString(fmt.Sprintf(" (in %s)", d.Location.Function))
		}
		sb.WriteString("\n")
		if d.Source != "" {
			prefix := fmt.Sprintf("  %d | ", d.Location.Line)
			sb.WriteString(fmt.Sprintf("\n%s%s\n", prefix, d.Source))
			sb.WriteString(strings.Repeat(" ", len(prefix)))
			if d.Location.Column > 0 {
				sb.WriteString(strings.Repeat(" ", d.Location.Column-1))
			}
			sb.WriteString("^\n")
		}
	}
	if len(d.CallStack) > 0 {
		sb.WriteString("\nCall Stack:\n")
		for _, f := range d.CallStack {
			sb.WriteString(fmt.Sprintf("  at %s (%s:%d:%d)\n", f.Function, f.File, f.Line, f.Column))
		}
	}
	if d.cause != nil {
		sb.WriteString(fmt.Sprintf("caused by: %s\n", d.cause))
	}
	return sb.String()
}

// Report summarizes a run for the CLI (cmd/vela), using go-humanize so
// durations and byte counts read naturally rather than as raw numbers —
// matching the teacher's preference for readable CLI output elsewhere in its
// reporting packages.
type Report struct {
	RunID       uuid.UUID
	Diagnostics []*Diagnostic
	Elapsed     time.Duration
	BytesRead   int64
}

func (r Report) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("run %s: %d diagnostic(s) in %s (%s read)\n",
		r.RunID, len(r.Diagnostics), humanize.Time(time.Now().Add(-r.Elapsed)), humanize.Bytes(uint64(r.BytesRead))))
	for _, d := range r.Diagnostics {
		sb.WriteString(d.Error())
	}
	return sb.String()
}
