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

package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/provider"
	"Tankobon/pkg/provider/base"
	"Tankobon/pkg/provider/providertest"
)

func TestAcrossIsolatesFailures(t *testing.T) {
	good := providertest.New("good")
	good.Add("one-piece", "One Piece", "1")
	good.Add("one-punch-man", "One Punch Man", "1")
	good.Add("berserk", "Berserk", "1")

	broken := base.New(provider.Info{ID: "broken"}, provider.Env{}, nil).
		WithSearch(func(ctx context.Context, term string) ([]core.SearchResult, error) {
			return nil, errors.Track(fmt.Errorf("%w: 502", errors.ErrServerError)).AsNetwork().Error()
		}).
		Build()

	ctx := WithConcurrency(context.Background(), 1)
	results := Across(ctx, []provider.Provider{broken, good.Provider()}, "one", logger.Nop())
	require.Len(t, results, 2)

	assert.Equal(t, "broken", results[0].SourceID)
	assert.Error(t, results[0].Err)
	assert.NotEmpty(t, results[0].Error)

	assert.Equal(t, "good", results[1].SourceID)
	require.NoError(t, results[1].Err)
	require.Len(t, results[1].Results, 2)
	assert.Equal(t, "One Piece", results[1].Results[0].Name)
}

func TestConcurrency(t *testing.T) {
	assert.Equal(t, 5, Concurrency(context.Background(), 5))
	assert.Equal(t, 2, Concurrency(WithConcurrency(context.Background(), 2), 5))
	assert.Equal(t, 5, Concurrency(WithConcurrency(context.Background(), 0), 5))
}

func TestRank(t *testing.T) {
	in := []core.SearchResult{
		{Slug: "x", Name: "Xenoblade"},
		{Slug: "bk", Name: "Berserk of Gluttony"},
		{Slug: "b", Name: "Berserk"},
	}
	out := Rank(in, "berserk")
	assert.Equal(t, []string{"b", "bk", "x"}, []string{out[0].Slug, out[1].Slug, out[2].Slug})
	assert.Equal(t, in, Rank(in, ""))
}
