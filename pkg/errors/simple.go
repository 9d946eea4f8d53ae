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
	"fmt"
	"strings"
)

// T tracks an error
func T(err error) error {
	if err == nil {
		return nil
	}
	return track(err)
}

// TM tracks an error with a user-friendly message
func TM(err error, message string) error {
	if err == nil {
		return nil
	}
	te := track(err)
	te.UserMessage = message
	return te
}

// TN tracks an error as network-related unless it was already classified
func TN(err error) error {
	if err == nil {
		return nil
	}
	te := track(err)
	if te.Category == CategoryUnknown {
		te.Category = CategoryNetwork
	}
	return te
}

// TP tracks an error raised by a source adapter
func TP(err error, providerID string) error {
	if err == nil {
		return nil
	}
	te := track(err)
	te.Context["provider_id"] = providerID
	if te.Category == CategoryUnknown {
		te.Category = CategoryProvider
	}
	return te
}

// TS tracks a database or filesystem failure
func TS(err error) error {
	if err == nil {
		return nil
	}
	te := track(err)
	if te.Category == CategoryUnknown {
		te.Category = CategoryStorage
	}
	return te
}

// Join combines multiple errors into a single tracked error
func Join(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}

	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return T(nonNil[0])
	}

	messages := make([]string, len(nonNil))
	for i, err := range nonNil {
		messages[i] = err.Error()
	}
	te := track(fmt.Errorf("multiple errors: %s", strings.Join(messages, "; ")))
	te.Context["original_errors"] = nonNil

	for _, err := range nonNil {
		var existing *TrackedError
		if As(err, &existing) && te.Category == CategoryUnknown {
			te.Category = existing.Category
		}
	}
	return te
}

// GetCategory returns the category of a tracked error, classifying plain
// errors on the fly.
func GetCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}
	var te *TrackedError
	if As(err, &te) {
		return te.Category
	}
	return classifyError(err)
}

// GetContext returns the context data of a tracked error
func GetContext(err error) map[string]interface{} {
	var te *TrackedError
	if As(err, &te) {
		return te.GetContext()
	}
	return nil
}

// GetFunctionChain returns the function call path
func GetFunctionChain(err error) string {
	var te *TrackedError
	if As(err, &te) {
		return te.GetFunctionChain()
	}
	return ""
}

func IsStorage(err error) bool { return GetCategory(err) == CategoryStorage }

// IsRetryable reports whether a failed unit of work may succeed on a later
// attempt. Validation, parsing, not-found and cancellation are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TrackedError
	if As(err, &te) {
		return isRetryable(te)
	}
	return isRetryable(&TrackedError{Category: classifyError(err)})
}

// FormatSimple renders a one-line error with its category and call path
func FormatSimple(err error) string {
	var te *TrackedError
	if !As(err, &te) {
		return err.Error()
	}

	chain := te.GetFunctionChain()
	if chain == "" {
		return fmt.Sprintf("[%s] %s", te.Category, err.Error())
	}
	return fmt.Sprintf("[%s] %s: %s", te.Category, chain, err.Error())
}
