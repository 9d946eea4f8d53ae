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
	"fmt"
)

// ErrorBuilder provides a fluent interface for building tracked errors
type ErrorBuilder struct {
	err *TrackedError
}

// Track wraps any error with automatic tracking and returns a builder.
// A nil error yields a nil builder whose methods are no-ops.
func Track(err error) *ErrorBuilder {
	if err == nil {
		return nil
	}
	return &ErrorBuilder{err: track(err)}
}

// New creates a new error with tracking
func New(message string) *ErrorBuilder {
	return Track(fmt.Errorf("%s", message))
}

// WithContext adds context data to the error
func (b *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	if b == nil || b.err == nil {
		return b
	}

	b.err.Context[key] = value
	return b
}

// WithMessage sets a user-friendly message
func (b *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	if b == nil || b.err == nil {
		return b
	}

	b.err.UserMessage = message
	return b
}

// WithMessagef sets a formatted user-friendly message
func (b *ErrorBuilder) WithMessagef(format string, args ...interface{}) *ErrorBuilder {
	return b.WithMessage(fmt.Sprintf(format, args...))
}

// AsCategory sets the error category
func (b *ErrorBuilder) AsCategory(category ErrorCategory) *ErrorBuilder {
	if b == nil || b.err == nil {
		return b
	}

	b.err.Category = category
	return b
}

// AsNetwork marks the error as network-related
func (b *ErrorBuilder) AsNetwork() *ErrorBuilder {
	return b.AsCategory(CategoryNetwork)
}

// AsParser marks the error as parsing-related
func (b *ErrorBuilder) AsParser() *ErrorBuilder {
	return b.AsCategory(CategoryParsing)
}

// AsValidation marks the error as a data model violation
func (b *ErrorBuilder) AsValidation() *ErrorBuilder {
	return b.AsCategory(CategoryValidation)
}

// AsProvider tags the error with the source it came from. The category is
// only set when nothing more specific was classified.
func (b *ErrorBuilder) AsProvider(providerID string) *ErrorBuilder {
	if b == nil || b.err == nil {
		return b
	}

	b.err.Context["provider_id"] = providerID
	if b.err.Category == CategoryUnknown {
		b.err.Category = CategoryProvider
	}
	return b
}

func (b *ErrorBuilder) AsNotFound() *ErrorBuilder {
	return b.AsCategory(CategoryNotFound)
}

func (b *ErrorBuilder) AsStorage() *ErrorBuilder {
	return b.AsCategory(CategoryStorage)
}

func (b *ErrorBuilder) AsCacheMiss() *ErrorBuilder {
	return b.AsCategory(CategoryCacheMiss)
}

func (b *ErrorBuilder) AsCancelled() *ErrorBuilder {
	return b.AsCategory(CategoryCancelled)
}

// Error returns the tracked error
func (b *ErrorBuilder) Error() error {
	if b == nil || b.err == nil {
		return nil
	}
	return b.err
}

// String implements fmt.Stringer
func (b *ErrorBuilder) String() string {
	if b == nil || b.err == nil {
		return ""
	}
	return b.err.Error()
}

// WithHTTPContext adds HTTP-related context
func (b *ErrorBuilder) WithHTTPContext(method, url string, statusCode int) *ErrorBuilder {
	return b.
		WithContext("method", method).
		WithContext("url", url).
		WithContext("status_code", statusCode)
}

// WithFileContext adds file-related context
func (b *ErrorBuilder) WithFileContext(path string, operation string) *ErrorBuilder {
	return b.
		WithContext("file_path", path).
		WithContext("file_operation", operation)
}

// IsRetryable reports whether a download worker should try again
func (b *ErrorBuilder) IsRetryable() bool {
	if b == nil || b.err == nil {
		return false
	}
	return isRetryable(b.err)
}

func isRetryable(te *TrackedError) bool {
	switch te.Category {
	case CategoryNetwork, CategoryTimeout, CategoryRateLimit, CategoryProvider, CategoryUnknown:
		if statusCode, ok := te.Context["status_code"].(int); ok {
			return statusCode >= 500 || statusCode == 429
		}
		return true
	default:
		return false
	}
}

// FromContext converts a finished context into a tracked error
func FromContext(ctx context.Context) *ErrorBuilder {
	err := ctx.Err()
	if err == nil {
		return nil
	}

	if Is(err, context.Canceled) {
		return Track(err).AsCancelled().WithMessage("operation was cancelled")
	}
	return Track(err).AsCategory(CategoryTimeout).WithMessage("operation timed out")
}
