// Tankobon: a manga library, reader backend and downloader.
// Copyright (C) 2025 Luca M. Schmidt (LuMiSxh)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package errors

import (
	"context"
	"io/fs"
	"net"
	"runtime"
	"strings"
	"time"
)

// TrackedError wraps errors with the chain of functions they passed through
type TrackedError struct {
	Original    error                  `json:"original_error"`
	RootCause   error                  `json:"root_cause"`
	CallChain   []FunctionCall         `json:"call_chain"`
	Context     map[string]interface{} `json:"context,omitempty"`
	UserMessage string                 `json:"user_message,omitempty"`
	Category    ErrorCategory          `json:"category"`
}

// FunctionCall represents a single function in the call chain
type FunctionCall struct {
	Function  string    `json:"function"`
	ShortName string    `json:"short_name"`
	Package   string    `json:"package"`
	File      string    `json:"file"`
	Line      int       `json:"line"`
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation,omitempty"`
}

// ErrorCategory classifies errors by kind
type ErrorCategory string

const (
	CategoryNetwork    ErrorCategory = "network"
	CategoryProvider   ErrorCategory = "provider"
	CategoryParsing    ErrorCategory = "parsing"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"
	CategoryCacheMiss  ErrorCategory = "cache_miss"
	CategoryCancelled  ErrorCategory = "cancelled"
	CategoryStorage    ErrorCategory = "storage"
	CategoryTimeout    ErrorCategory = "timeout"
	CategoryRateLimit  ErrorCategory = "rate_limit"
	CategoryUnknown    ErrorCategory = "unknown"
)

func (e *TrackedError) Error() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	if e.Original != nil {
		return e.Original.Error()
	}
	return "unknown error"
}

func (e *TrackedError) Unwrap() error {
	return e.Original
}

// Is matches the wrapped chain, and also the sentinel that stands for the
// error's category, so a context.Canceled tracked AsCancelled is ErrCancelled.
func (e *TrackedError) Is(target error) bool {
	if sentinel, ok := categorySentinels[e.Category]; ok && sentinel == target {
		return true
	}
	return (e.Original != nil && Is(e.Original, target)) ||
		(e.RootCause != nil && Is(e.RootCause, target))
}

var categorySentinels = map[ErrorCategory]error{
	CategoryNotFound:  ErrNotFound,
	CategoryCacheMiss: ErrCacheMiss,
	CategoryCancelled: ErrCancelled,
	CategoryStorage:   ErrStorage,
	CategoryTimeout:   ErrTimeout,
	CategoryRateLimit: ErrRateLimit,
}

// GetFunctionChain returns the function call path as a string
func (e *TrackedError) GetFunctionChain() string {
	if len(e.CallChain) == 0 {
		return ""
	}

	functions := make([]string, len(e.CallChain))
	for i, call := range e.CallChain {
		functions[i] = call.ShortName
	}

	return strings.Join(functions, " -> ")
}

// GetContext returns the context data associated with the error
func (e *TrackedError) GetContext() map[string]interface{} {
	if e.Context == nil {
		return make(map[string]interface{})
	}
	return e.Context
}

// track records the calling function and wraps err. An already tracked
// error gets the caller appended to its chain and keeps its category.
func track(err error) *TrackedError {
	call, ok := callerFrame()

	var te *TrackedError
	if As(err, &te) {
		if ok {
			last := te.lastCall()
			if last == nil || last.Function != call.Function || last.Line != call.Line {
				te.CallChain = append(te.CallChain, call)
			}
		}
		return te
	}

	te = &TrackedError{
		Original:  err,
		RootCause: findRootCause(err),
		Context:   make(map[string]interface{}),
		Category:  classifyError(err),
	}
	if ok {
		te.CallChain = []FunctionCall{call}
	}
	return te
}

func (e *TrackedError) lastCall() *FunctionCall {
	if len(e.CallChain) == 0 {
		return nil
	}
	return &e.CallChain[len(e.CallChain)-1]
}

// callerFrame walks up the stack to the first frame outside this package
func callerFrame() (FunctionCall, bool) {
	for i := 2; i < 12; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "pkg/errors/") && !strings.HasSuffix(file, "_test.go") {
			continue
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}

		full := fn.Name()
		short := extractShortFunctionName(full)
		return FunctionCall{
			Function:  full,
			ShortName: short,
			Package:   extractPackageName(full),
			File:      extractFileName(file),
			Line:      line,
			Timestamp: time.Now(),
			Operation: detectOperation(short),
		}, true
	}
	return FunctionCall{}, false
}

func extractShortFunctionName(fullName string) string {
	if idx := strings.LastIndex(fullName, "/"); idx != -1 {
		fullName = fullName[idx+1:]
	}
	// pkg.(*Type).Method -> Type.Method
	if dot := strings.Index(fullName, "."); dot != -1 {
		fullName = fullName[dot+1:]
	}
	fullName = strings.ReplaceAll(fullName, "(*", "")
	return strings.ReplaceAll(fullName, ")", "")
}

func extractPackageName(fullName string) string {
	if idx := strings.LastIndex(fullName, "/"); idx != -1 {
		fullName = fullName[idx+1:]
	}
	if dot := strings.Index(fullName, "."); dot != -1 {
		return fullName[:dot]
	}
	return "unknown"
}

func extractFileName(fullPath string) string {
	if idx := strings.LastIndex(fullPath, "/"); idx != -1 {
		return fullPath[idx+1:]
	}
	return fullPath
}

func detectOperation(functionName string) string {
	lower := strings.ToLower(functionName)

	switch {
	case strings.Contains(lower, "search"), strings.Contains(lower, "popular"):
		return "search"
	case strings.Contains(lower, "download"):
		return "download"
	case strings.Contains(lower, "update"), strings.Contains(lower, "merge"):
		return "update"
	case strings.Contains(lower, "parse"):
		return "parse"
	case strings.Contains(lower, "validate"):
		return "validate"
	case strings.Contains(lower, "fetch"), strings.Contains(lower, "get"):
		return "get"
	default:
		return ""
	}
}

func classifyError(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}

	switch {
	case Is(err, ErrCacheMiss):
		return CategoryCacheMiss
	case Is(err, ErrCancelled), Is(err, context.Canceled):
		return CategoryCancelled
	case Is(err, ErrNotFound):
		return CategoryNotFound
	case Is(err, ErrRateLimit):
		return CategoryRateLimit
	case Is(err, ErrTimeout), Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case Is(err, ErrParse):
		return CategoryParsing
	case Is(err, ErrValidation), Is(err, ErrInvalidInput):
		return CategoryValidation
	case Is(err, ErrStorage):
		return CategoryStorage
	case Is(err, ErrNetworkIssue), Is(err, ErrServerError), Is(err, ErrNotImage):
		return CategoryNetwork
	}

	var netErr net.Error
	if As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryNetwork
	}
	var pathErr *fs.PathError
	if As(err, &pathErr) {
		return CategoryStorage
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case containsAny(errStr, "dial tcp", "connection refused", "no such host", "connection reset", "tls", "certificate"):
		return CategoryNetwork
	case containsAny(errStr, "deadline exceeded", "timeout"):
		return CategoryTimeout
	case containsAny(errStr, "json", "unmarshal", "invalid character", "unexpected end", "parse"):
		return CategoryParsing
	case containsAny(errStr, "sqlite", "database", "constraint", "no space", "permission denied"):
		return CategoryStorage
	case containsAny(errStr, "not found", "404"):
		return CategoryNotFound
	default:
		return CategoryUnknown
	}
}

func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func findRootCause(err error) error {
	root := err
	for {
		unwrapped := Unwrap(root)
		if unwrapped == nil {
			return root
		}
		root = unwrapped
	}
}
