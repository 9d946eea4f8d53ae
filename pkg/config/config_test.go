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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/errors"
)

func TestDefaults(t *testing.T) {
	s := New().Settings()

	assert.Equal(t, core.RightToLeft, s.ReadingDirection)
	assert.Equal(t, core.ScaleScreen, s.Scaling)
	assert.Equal(t, core.BackgroundWhite, s.BackgroundColor)
	assert.Equal(t, [2]int{360, 648}, s.WindowSize)
	assert.Equal(t, 30*time.Second, s.NetworkTimeout)
	assert.Equal(t, 3, s.RetryBudget)
	assert.Equal(t, logger.LevelInfo, s.LogLevel)
	assert.NotEmpty(t, s.DataDir)
}

func TestSetValidatesDomain(t *testing.T) {
	c := New()

	require.NoError(t, c.Set(KeyReadingDirection, "left-to-right"))
	require.NoError(t, c.Set(KeyScaling, "width"))
	require.NoError(t, c.Set(KeyWindowSize, "800x600"))
	require.NoError(t, c.Set(KeyUpdateSchedule, "0 */6 * * *"))

	err := c.Set(KeyBackgroundColor, "purple")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Error(t, c.Set(KeyRetryBudget, "0"))
	assert.Error(t, c.Set(KeyUpdateSchedule, "every tuesday"))
	assert.Error(t, c.Set("no-such-key", "1"))

	s := c.Settings()
	assert.Equal(t, core.LeftToRight, s.ReadingDirection)
	assert.Equal(t, core.ScaleWidth, s.Scaling)
	assert.Equal(t, core.BackgroundWhite, s.BackgroundColor)
	assert.Equal(t, [2]int{800, 600}, s.WindowSize)

	ws, err := c.Get(KeyWindowSize)
	require.NoError(t, err)
	assert.Equal(t, "800x600", ws)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.yaml")

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Set(KeyDarkTheme, "true"))
	require.NoError(t, c.Set(KeyPageDelay, "50ms"))
	require.NoError(t, c.Save())

	again, err := Load(path)
	require.NoError(t, err)
	s := again.Settings()
	assert.True(t, s.DarkTheme)
	assert.Equal(t, 50*time.Millisecond, s.PageDelay)
}

func TestLoadRejectsBrokenValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scaling: sideways\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.GetCategory(err))
}

func TestSeriesOverridesWin(t *testing.T) {
	defaults := New().Settings().Reader()
	dir := core.LeftToRight
	series := core.Series{ReadingDirection: &dir}

	got := series.Apply(defaults)
	assert.Equal(t, core.LeftToRight, got.ReadingDirection)
	assert.Equal(t, defaults.Scaling, got.Scaling)
}
