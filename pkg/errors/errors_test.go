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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fetchSomething() error {
	return Track(fmt.Errorf("wrap: %w", ErrNotFound)).
		WithContext("url", "https://example.org/manga/x").
		Error()
}

func TestTrackClassifiesSentinels(t *testing.T) {
	cases := map[error]ErrorCategory{
		ErrCacheMiss:                       CategoryCacheMiss,
		ErrCancelled:                       CategoryCancelled,
		context.Canceled:                   CategoryCancelled,
		ErrParse:                           CategoryParsing,
		ErrValidation:                      CategoryValidation,
		ErrStorage:                         CategoryStorage,
		fmt.Errorf("x: %w", ErrRateLimit):  CategoryRateLimit,
		fmt.Errorf("dial tcp: refused"):    CategoryNetwork,
		fmt.Errorf("something else broke"): CategoryUnknown,
	}

	for err, want := range cases {
		assert.Equal(t, want, GetCategory(T(err)), err.Error())
	}
}

func TestTrackKeepsSentinelIdentity(t *testing.T) {
	err := fetchSomething()
	require.Error(t, err)

	assert.True(t, IsNotFound(err))
	assert.Equal(t, CategoryNotFound, GetCategory(err))
	assert.Equal(t, "https://example.org/manga/x", GetContext(err)["url"])
	assert.Contains(t, GetFunctionChain(err), "fetchSomething")
}

func TestRetrackAppendsCaller(t *testing.T) {
	err := fetchSomething()
	again := T(err)

	var te *TrackedError
	require.True(t, As(again, &te))
	assert.Len(t, te.CallChain, 2)
	assert.Equal(t, CategoryNotFound, te.Category)
}

func TestBuilderNilIsNoop(t *testing.T) {
	var b *ErrorBuilder = Track(nil)
	assert.Nil(t, b.WithContext("k", "v").AsNetwork().Error())
	assert.Nil(t, T(nil))
	assert.Nil(t, Join(nil, nil))
}

func TestAsProviderKeepsSpecificCategory(t *testing.T) {
	err := Track(ErrParse).AsProvider("mangadex").Error()
	assert.Equal(t, CategoryParsing, GetCategory(err))
	assert.Equal(t, "mangadex", GetContext(err)["provider_id"])

	err = Track(fmt.Errorf("odd")).AsProvider("mangadex").Error()
	assert.Equal(t, CategoryProvider, GetCategory(err))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("boom")))
	assert.True(t, IsRetryable(TN(fmt.Errorf("reset"))))
	assert.False(t, IsRetryable(T(ErrParse)))
	assert.False(t, IsRetryable(T(ErrCancelled)))
	assert.False(t, IsRetryable(Track(fmt.Errorf("client")).AsNetwork().WithHTTPContext("GET", "u", 403).Error()))
	assert.True(t, IsRetryable(Track(fmt.Errorf("server")).AsNetwork().WithHTTPContext("GET", "u", 502).Error()))
}

func TestJoinTakesFirstCategory(t *testing.T) {
	err := Join(nil, T(ErrStorage), fmt.Errorf("plain"))
	require.Error(t, err)
	assert.Equal(t, CategoryStorage, GetCategory(err))
	assert.Contains(t, err.Error(), "multiple errors")
}

func TestFormatCLISimple(t *testing.T) {
	out := FormatCLISimple(TM(ErrCacheMiss, "page 3 is not downloaded"))
	assert.Contains(t, out, "[OFFLINE]")
	assert.Contains(t, out, "page 3 is not downloaded")
}

func TestCategoryMatchesSentinel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := FromContext(ctx).Error()
	assert.True(t, IsCancelled(err))
	assert.ErrorIs(t, err, context.Canceled)

	err = TS(fmt.Errorf("disk full"))
	assert.ErrorIs(t, err, ErrStorage)
	assert.False(t, IsNotFound(err))
}
