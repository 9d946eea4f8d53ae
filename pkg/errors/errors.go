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

import stderrors "errors"

var (
	As     = stderrors.As
	Is     = stderrors.Is
	Unwrap = stderrors.Unwrap
)

var (
	ErrNotFound     = stderrors.New("resource not found")
	ErrServerError  = stderrors.New("server error")
	ErrTimeout      = stderrors.New("operation timed out")
	ErrRateLimit    = stderrors.New("rate limit exceeded")
	ErrInvalidInput = stderrors.New("invalid input")
	ErrNetworkIssue = stderrors.New("network connection issue")

	// ErrParse is returned when expected markup or JSON is missing.
	ErrParse = stderrors.New("unexpected response shape")
	// ErrValidation marks a record that violates the data model.
	ErrValidation = stderrors.New("invalid record")
	// ErrCacheMiss is ordinary control flow for offline reads.
	ErrCacheMiss = stderrors.New("not in page cache")
	ErrCancelled = stderrors.New("cancelled by user")
	ErrStorage   = stderrors.New("storage failure")
	ErrNotImage  = stderrors.New("response is not an image")
)

func IsNotFound(err error) bool    { return Is(err, ErrNotFound) }
func IsCacheMiss(err error) bool   { return Is(err, ErrCacheMiss) }
func IsCancelled(err error) bool   { return Is(err, ErrCancelled) }
func IsRateLimited(err error) bool { return Is(err, ErrRateLimit) }
