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

package rpc

import (
	"encoding/json"
	"fmt"
	"time"

	"Tankobon/pkg/errors"
)

// Error is what a failed call reports. net/rpc only carries a string, so
// Error() renders the whole struct as JSON for the desktop client to decode.
type Error struct {
	Code          int                    `json:"code"`
	Message       string                 `json:"message"`
	Category      errors.ErrorCategory   `json:"category"`
	FunctionChain string                 `json:"function_chain,omitempty"`
	RootCause     string                 `json:"root_cause,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
	Service       string                 `json:"service,omitempty"`
	Method        string                 `json:"method,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

func (e *Error) Error() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("RPC Error %d: %s", e.Code, e.Message)
	}
	return string(data)
}

// Error codes by category
const (
	ErrCodeInvalidInput = -1001
	ErrCodeValidation   = -1003

	ErrCodeNotFound      = -1102
	ErrCodeProviderError = -1103

	ErrCodeNetwork   = -2001
	ErrCodeTimeout   = -2101
	ErrCodeCancelled = -2103
	ErrCodeRateLimit = -2202

	ErrCodeParsing   = -3001
	ErrCodeCacheMiss = -3105
	ErrCodeStorage   = -3103

	ErrCodeInternal = -9002
	ErrCodeUnknown  = -9099
)

var categoryCodes = map[errors.ErrorCategory]int{
	errors.CategoryNetwork:   ErrCodeNetwork,
	errors.CategoryProvider:  ErrCodeProviderError,
	errors.CategoryParsing:   ErrCodeParsing,
	errors.CategoryNotFound:  ErrCodeNotFound,
	errors.CategoryCacheMiss: ErrCodeCacheMiss,
	errors.CategoryCancelled: ErrCodeCancelled,
	errors.CategoryStorage:   ErrCodeStorage,
	errors.CategoryTimeout:   ErrCodeTimeout,
	errors.CategoryRateLimit: ErrCodeRateLimit,
	errors.CategoryUnknown:   ErrCodeUnknown,
}

// NewError converts err into an RPC error for service.method
func NewError(err error, service, method string) *Error {
	rpcErr := &Error{
		Message:   err.Error(),
		Category:  errors.GetCategory(err),
		Data:      make(map[string]interface{}),
		Service:   service,
		Method:    method,
		Timestamp: time.Now(),
	}

	var tracked *errors.TrackedError
	if errors.As(err, &tracked) {
		rpcErr.FunctionChain = tracked.GetFunctionChain()
		if tracked.RootCause != nil {
			rpcErr.RootCause = tracked.RootCause.Error()
		}
		for k, v := range tracked.GetContext() {
			rpcErr.Data[k] = v
		}
	}
	rpcErr.Code = errorCode(err, rpcErr.Category)
	return rpcErr
}

// errorCode prefers the sentinel over the category: a not-found error that
// came through a provider is still "not found" to the client.
func errorCode(err error, category errors.ErrorCategory) int {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, errors.ErrCacheMiss):
		return ErrCodeCacheMiss
	case errors.Is(err, errors.ErrCancelled):
		return ErrCodeCancelled
	case errors.Is(err, errors.ErrValidation):
		return ErrCodeValidation
	case errors.Is(err, errors.ErrInvalidInput):
		return ErrCodeInvalidInput
	}
	if category == errors.CategoryValidation {
		return ErrCodeInvalidInput
	}
	if code, ok := categoryCodes[category]; ok {
		return code
	}
	return ErrCodeInternal
}

// wrap returns nil for a nil err and an *Error otherwise
func wrap(err error, service, method string) error {
	if err == nil {
		return nil
	}
	return NewError(err, service, method)
}
