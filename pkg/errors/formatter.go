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
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
)

//go:embed suggestions.json
var suggestionFS embed.FS

// SuggestionsMap holds troubleshooting hints keyed by category
type SuggestionsMap map[string][]string

// CLIFormatter renders tracked errors for a terminal
type CLIFormatter struct {
	// ShowDebugInfo adds context and root cause details
	ShowDebugInfo bool

	// ShowFunctionChain adds the recorded call chain
	ShowFunctionChain bool

	Suggestions SuggestionsMap

	ErrorStyle       *color.Color
	NetworkStyle     *color.Color
	ProviderStyle    *color.Color
	ParsingStyle     *color.Color
	NotFoundStyle    *color.Color
	StorageStyle     *color.Color
	WarningStyle     *color.Color
	HeaderStyle      *color.Color
	SectionStyle     *color.Color
	DetailLabelStyle *color.Color
	DetailValueStyle *color.Color
	HighlightStyle   *color.Color
	SecondaryStyle   *color.Color
}

// NewCLIFormatter creates a new CLI error formatter with default settings
func NewCLIFormatter() *CLIFormatter {
	f := &CLIFormatter{Suggestions: make(SuggestionsMap)}
	f.initStyles()
	f.loadSuggestions()
	return f
}

// NewDebugCLIFormatter creates a CLI formatter with debug information enabled
func NewDebugCLIFormatter() *CLIFormatter {
	f := NewCLIFormatter()
	f.ShowDebugInfo = true
	f.ShowFunctionChain = true
	return f
}

func (f *CLIFormatter) initStyles() {
	f.ErrorStyle = color.New(color.FgRed)
	f.NetworkStyle = color.New(color.FgYellow)
	f.ProviderStyle = color.New(color.FgBlue)
	f.ParsingStyle = color.New(color.FgMagenta)
	f.NotFoundStyle = color.New(color.FgCyan)
	f.StorageStyle = color.New(color.FgHiRed)
	f.WarningStyle = color.New(color.FgYellow)
	f.HeaderStyle = color.New(color.Bold, color.FgCyan)
	f.SectionStyle = color.New(color.Underline, color.FgHiCyan)
	f.DetailLabelStyle = color.New(color.FgHiBlue)
	f.DetailValueStyle = color.New(color.FgWhite)
	f.HighlightStyle = color.New(color.FgMagenta)
	f.SecondaryStyle = color.New(color.FgHiBlack)
}

func (f *CLIFormatter) loadSuggestions() {
	data, err := suggestionFS.ReadFile("suggestions.json")
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &f.Suggestions); err != nil {
		f.Suggestions = make(SuggestionsMap)
	}
}

// Format formats an error for CLI display
func (f *CLIFormatter) Format(err error) string {
	if err == nil {
		return ""
	}

	var te *TrackedError
	if !As(err, &te) {
		return fmt.Sprintf("%s %s", f.HeaderStyle.Sprint("[ERROR]"), f.ErrorStyle.Sprint(err.Error()))
	}

	parts := []string{f.FormatSimple(err)}

	if guidance := f.guidance(te); guidance != "" {
		parts = append(parts, "", guidance)
	}
	if f.ShowFunctionChain && len(te.CallChain) > 0 {
		parts = append(parts, "", f.formatFunctionChain(te))
	}
	if f.ShowDebugInfo {
		parts = append(parts, "", f.formatDebugInfo(te))
	}

	return strings.Join(parts, "\n")
}

// FormatSimple provides a one-line error format
func (f *CLIFormatter) FormatSimple(err error) string {
	if err == nil {
		return ""
	}

	var te *TrackedError
	if !As(err, &te) {
		return fmt.Sprintf("%s %s", f.HeaderStyle.Sprint("[ERROR]"), f.ErrorStyle.Sprint(err.Error()))
	}

	prefix := categoryPrefix(te.Category)
	return fmt.Sprintf("%s %s", f.HeaderStyle.Sprint(prefix), f.categoryStyle(te.Category).Sprint(te.Error()))
}

func (f *CLIFormatter) guidance(te *TrackedError) string {
	suggestions := f.Suggestions[string(te.Category)]
	if len(suggestions) == 0 {
		return ""
	}

	lines := []string{f.SectionStyle.Sprint("Troubleshooting suggestions:")}
	for _, s := range suggestions {
		lines = append(lines, "  * "+f.DetailValueStyle.Sprint(s))
	}

	if id, ok := te.Context["provider_id"].(string); ok && id != "" {
		lines = append(lines, "", fmt.Sprintf("Source: %s", f.HighlightStyle.Sprint(id)))
	}
	if u, ok := te.Context["url"].(string); ok && u != "" {
		lines = append(lines, fmt.Sprintf("URL: %s", f.DetailValueStyle.Sprint(u)))
	}
	return strings.Join(lines, "\n")
}

func (f *CLIFormatter) formatFunctionChain(te *TrackedError) string {
	parts := []string{f.SectionStyle.Sprint("Function Call Chain:")}
	for i, call := range te.CallChain {
		parts = append(parts, fmt.Sprintf("  %d. %s() at %s:%s",
			i+1, f.HighlightStyle.Sprint(call.ShortName),
			f.SecondaryStyle.Sprint(call.File), f.SecondaryStyle.Sprint(call.Line)))
		if call.Operation != "" {
			parts = append(parts, fmt.Sprintf("      Operation: %s", f.DetailValueStyle.Sprint(call.Operation)))
		}
	}
	return strings.Join(parts, "\n")
}

func (f *CLIFormatter) formatDebugInfo(te *TrackedError) string {
	parts := []string{f.SectionStyle.Sprint("Debug Information")}

	if te.Original != nil {
		parts = append(parts, fmt.Sprintf("%s %s",
			f.DetailLabelStyle.Sprint("Original Error:"),
			f.DetailValueStyle.Sprint(te.Original.Error())))
	}
	if te.RootCause != nil && te.RootCause != te.Original {
		parts = append(parts, fmt.Sprintf("%s %s",
			f.DetailLabelStyle.Sprint("Root Cause:"),
			f.DetailValueStyle.Sprint(te.RootCause.Error())))
	}

	keys := make([]string, 0, len(te.Context))
	for k := range te.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("  %s %s",
			f.DetailLabelStyle.Sprintf("%s:", k),
			f.DetailValueStyle.Sprint(te.Context[k])))
	}

	return strings.Join(parts, "\n")
}

func categoryPrefix(category ErrorCategory) string {
	switch category {
	case CategoryNetwork:
		return "[NETWORK]"
	case CategoryProvider:
		return "[SOURCE]"
	case CategoryParsing:
		return "[PARSING]"
	case CategoryValidation:
		return "[INVALID]"
	case CategoryNotFound:
		return "[NOT FOUND]"
	case CategoryCacheMiss:
		return "[OFFLINE]"
	case CategoryCancelled:
		return "[CANCELLED]"
	case CategoryStorage:
		return "[STORAGE]"
	case CategoryTimeout:
		return "[TIMEOUT]"
	case CategoryRateLimit:
		return "[RATE LIMIT]"
	default:
		return "[ERROR]"
	}
}

func (f *CLIFormatter) categoryStyle(category ErrorCategory) *color.Color {
	switch category {
	case CategoryNetwork, CategoryTimeout, CategoryRateLimit:
		return f.NetworkStyle
	case CategoryProvider:
		return f.ProviderStyle
	case CategoryParsing, CategoryValidation:
		return f.ParsingStyle
	case CategoryNotFound, CategoryCacheMiss:
		return f.NotFoundStyle
	case CategoryStorage:
		return f.StorageStyle
	case CategoryCancelled:
		return f.WarningStyle
	default:
		return f.ErrorStyle
	}
}

var (
	DefaultCLIFormatter = NewCLIFormatter()
	DebugCLIFormatter   = NewDebugCLIFormatter()
)

// FormatCLI formats an error with troubleshooting hints
func FormatCLI(err error) string {
	return DefaultCLIFormatter.Format(err)
}

// FormatCLISimple formats an error for simple CLI display
func FormatCLISimple(err error) string {
	return DefaultCLIFormatter.FormatSimple(err)
}

// FormatCLIDebug formats an error with debug information
func FormatCLIDebug(err error) string {
	return DebugCLIFormatter.Format(err)
}
