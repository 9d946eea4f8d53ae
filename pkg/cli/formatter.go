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

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/search"
	"Tankobon/pkg/engine/update"
	pkgerrors "Tankobon/pkg/errors"
	"Tankobon/pkg/provider"
	"Tankobon/pkg/util"
)

// Formatter handles all CLI output formatting
type Formatter struct {
	// Writer is where the formatted output will be written
	Writer io.Writer

	// DisableColor disables colorized output
	DisableColor bool

	HeaderStyle      *color.Color
	TitleStyle       *color.Color
	SuccessStyle     *color.Color
	ErrorStyle       *color.Color
	WarningStyle     *color.Color
	InfoStyle        *color.Color
	SecondaryStyle   *color.Color
	SectionStyle     *color.Color
	DetailLabelStyle *color.Color
	DetailValueStyle *color.Color
	IDStyle          *color.Color
	PathStyle        *color.Color
	DateStyle        *color.Color
	NumberStyle      *color.Color
}

// NewFormatter creates a new CLI formatter writing to stdout
func NewFormatter() *Formatter {
	return NewFormatterTo(os.Stdout, false)
}

// NewFormatterTo creates a formatter for w
func NewFormatterTo(w io.Writer, disableColor bool) *Formatter {
	f := &Formatter{Writer: w, DisableColor: disableColor}
	f.initStyles()
	return f
}

func (f *Formatter) initStyles() {
	f.HeaderStyle = color.New(color.Bold, color.FgCyan)
	f.TitleStyle = color.New(color.Bold, color.FgWhite)
	f.SuccessStyle = color.New(color.FgGreen)
	f.ErrorStyle = color.New(color.FgRed)
	f.WarningStyle = color.New(color.FgYellow)
	f.InfoStyle = color.New(color.FgBlue)
	f.SecondaryStyle = color.New(color.FgHiBlack)
	f.SectionStyle = color.New(color.Underline, color.FgHiCyan)
	f.DetailLabelStyle = color.New(color.FgHiBlue)
	f.DetailValueStyle = color.New(color.FgWhite)
	f.IDStyle = color.New(color.FgHiMagenta)
	f.PathStyle = color.New(color.FgHiGreen)
	f.DateStyle = color.New(color.FgHiBlue)
	f.NumberStyle = color.New(color.FgHiYellow)

	if f.DisableColor {
		for _, c := range []*color.Color{
			f.HeaderStyle, f.TitleStyle, f.SuccessStyle, f.ErrorStyle, f.WarningStyle,
			f.InfoStyle, f.SecondaryStyle, f.SectionStyle, f.DetailLabelStyle,
			f.DetailValueStyle, f.IDStyle, f.PathStyle, f.DateStyle, f.NumberStyle,
		} {
			c.DisableColor()
		}
	}
}

// PrintHeader prints a header followed by a divider
func (f *Formatter) PrintHeader(text string) {
	f.HeaderStyle.Fprintln(f.Writer, text)
	f.PrintDivider()
}

// PrintTitle prints a title
func (f *Formatter) PrintTitle(text string) {
	f.TitleStyle.Fprintln(f.Writer, text)
}

// PrintSuccess prints a success message
func (f *Formatter) PrintSuccess(text string) {
	f.SuccessStyle.Fprintln(f.Writer, text)
}

// PrintError prints an error message
func (f *Formatter) PrintError(text string) {
	f.ErrorStyle.Fprintln(f.Writer, text)
}

// PrintWarning prints a warning message
func (f *Formatter) PrintWarning(text string) {
	f.WarningStyle.Fprintln(f.Writer, text)
}

// PrintInfo prints an informational message
func (f *Formatter) PrintInfo(text string) {
	f.InfoStyle.Fprintln(f.Writer, text)
}

// PrintDetail prints a labeled detail
func (f *Formatter) PrintDetail(label, value string) {
	f.DetailLabelStyle.Fprintf(f.Writer, "%s: ", label)
	f.DetailValueStyle.Fprintln(f.Writer, value)
}

// PrintDivider prints a horizontal divider
func (f *Formatter) PrintDivider() {
	fmt.Fprintln(f.Writer, strings.Repeat("-", 80))
}

// PrintSection prints a section header surrounded by blank lines
func (f *Formatter) PrintSection(text string) {
	fmt.Fprintln(f.Writer)
	f.SectionStyle.Fprintln(f.Writer, text)
	fmt.Fprintln(f.Writer)
}

// FormatID formats an ID
func (f *Formatter) FormatID(id interface{}) string {
	return f.IDStyle.Sprint(id)
}

// FormatPath formats a file path
func (f *Formatter) FormatPath(path string) string {
	return f.PathStyle.Sprint(path)
}

// FormatDate formats a nullable date
func (f *Formatter) FormatDate(date *time.Time) string {
	if date == nil {
		return f.SecondaryStyle.Sprint("-")
	}
	return f.DateStyle.Sprint(util.FormatDate(date))
}

// PrintTable prints rows under headers
func (f *Formatter) PrintTable(headers []string, data [][]string) {
	table := tablewriter.NewTable(f.Writer)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Header.Alignment.Global = tw.AlignLeft
		cfg.Row.Alignment.Global = tw.AlignLeft
		cfg.Header.Padding.Global = tw.Padding{Left: " ", Right: " "}
		cfg.Row.Padding.Global = tw.Padding{Left: " ", Right: " "}
	})

	table.Header(headers)
	if err := table.Bulk(data); err != nil {
		return
	}
	table.Render()
}

// HandleError prints err and reports whether there was one
func (f *Formatter) HandleError(err error) bool {
	if err == nil {
		return false
	}

	var tracked *pkgerrors.TrackedError
	if errors.As(err, &tracked) {
		f.PrintError(pkgerrors.FormatCLI(err))
	} else {
		f.PrintError(fmt.Sprintf("[ERROR] %s", err.Error()))
	}
	return true
}

// PrintSources lists the usable sources
func (f *Formatter) PrintSources(infos []provider.Info) {
	f.PrintHeader("Sources")
	if len(infos) == 0 {
		f.PrintWarning("No sources available.")
		return
	}

	rows := make([][]string, len(infos))
	for i, info := range infos {
		caps := make([]string, len(info.Capabilities))
		for j, c := range info.Capabilities {
			caps[j] = string(c)
		}
		nsfw := ""
		if info.NSFW {
			nsfw = "yes"
		}
		rows[i] = []string{info.ID, info.Name, info.Language, nsfw, strings.Join(caps, ", ")}
	}
	f.PrintTable([]string{"ID", "NAME", "LANG", "NSFW", "CAPABILITIES"}, rows)
}

// PrintSearchResults prints the listing of one source
func (f *Formatter) PrintSearchResults(sourceID string, results []core.SearchResult) {
	if len(results) == 0 {
		f.PrintWarning(fmt.Sprintf("No results from %s.", sourceID))
		return
	}

	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{strconv.Itoa(i + 1), r.Name, r.Slug}
	}
	f.PrintSection(fmt.Sprintf("%s (%d)", sourceID, len(results)))
	f.PrintTable([]string{"#", "NAME", "SLUG"}, rows)
}

// PrintSearchAcross prints a multi-source search. Failed sources are
// reported inline so the others still show.
func (f *Formatter) PrintSearchAcross(term string, results []search.Result) {
	f.PrintHeader(fmt.Sprintf("Results for %q", term))
	for _, r := range results {
		if r.Err != nil {
			f.PrintSection(r.SourceID)
			f.PrintError(pkgerrors.FormatCLISimple(r.Err))
			continue
		}
		f.PrintSearchResults(r.SourceID, r.Results)
	}
}

// PrintLibrary lists library series, most recently read first
func (f *Formatter) PrintLibrary(series []core.Series) {
	f.PrintHeader("Library")
	if len(series) == 0 {
		f.PrintWarning("The library is empty.")
		return
	}

	rows := make([][]string, len(series))
	for i, s := range series {
		rows[i] = []string{
			strconv.FormatInt(s.ID, 10),
			s.Name,
			s.SourceID,
			string(s.Status),
			util.FormatDate(s.LastReadAt),
		}
	}
	f.PrintTable([]string{"ID", "NAME", "SOURCE", "STATUS", "LAST READ"}, rows)
}

// FormatSize renders a byte count with a binary unit
func (f *Formatter) FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// PrintSeries prints a series record followed by its chapters
func (f *Formatter) PrintSeries(s *core.SeriesWithChapters) {
	f.PrintHeader(s.Name)
	f.PrintDetail("ID", f.FormatID(s.ID))
	f.PrintDetail("Source", s.SourceID)
	if s.URL != "" {
		f.PrintDetail("URL", s.URL)
	}
	if len(s.Authors) > 0 {
		f.PrintDetail("Authors", strings.Join(s.Authors, ", "))
	}
	if len(s.Scanlators) > 0 {
		f.PrintDetail("Scanlators", strings.Join(s.Scanlators, ", "))
	}
	if len(s.Genres) > 0 {
		f.PrintDetail("Genres", strings.Join(s.Genres, ", "))
	}
	f.PrintDetail("Status", string(s.Status))
	if s.LastUpdatedAt != nil {
		f.PrintDetail("Updated", f.FormatDate(s.LastUpdatedAt))
	}
	if s.CoverLocalPath != nil {
		f.PrintDetail("Cover", f.FormatPath(*s.CoverLocalPath))
	}
	if s.Synopsis != "" {
		f.PrintSection("Synopsis")
		fmt.Fprintln(f.Writer, s.Synopsis)
	}

	f.PrintSection(fmt.Sprintf("Chapters (%d)", len(s.Chapters)))
	if len(s.Chapters) == 0 {
		f.PrintWarning("No chapters.")
		return
	}
	rows := make([][]string, len(s.Chapters))
	for i, c := range s.Chapters {
		rows[i] = []string{
			strconv.FormatInt(c.ID, 10),
			c.Title,
			util.FormatDate(c.PublishedDate),
			chapterState(c),
		}
	}
	f.PrintTable([]string{"ID", "TITLE", "DATE", "STATE"}, rows)
}

func chapterState(c core.Chapter) string {
	var parts []string
	if c.Downloaded {
		parts = append(parts, "downloaded")
	}
	switch {
	case c.Read:
		parts = append(parts, "read")
	case c.LastPageReadIndex != nil && len(c.Pages) > 0:
		parts = append(parts, fmt.Sprintf("page %d/%d", *c.LastPageReadIndex+1, len(c.Pages)))
	}
	return strings.Join(parts, ", ")
}

// PrintDownloads lists the download queue
func (f *Formatter) PrintDownloads(tasks []core.DownloadTask) {
	f.PrintHeader("Downloads")
	if len(tasks) == 0 {
		f.PrintInfo("The download queue is empty.")
		return
	}

	rows := make([][]string, len(tasks))
	for i, t := range tasks {
		rows[i] = []string{
			strconv.FormatInt(t.ChapterID, 10),
			string(t.Status),
			fmt.Sprintf("%d%%", t.Percent),
			strconv.Itoa(t.ErrorCount),
			t.EnqueuedAt.Local().Format("2006-01-02 15:04"),
		}
	}
	f.PrintTable([]string{"CHAPTER", "STATUS", "PROGRESS", "ERRORS", "QUEUED"}, rows)
}

// PrintUpdateResults summarizes a library refresh
func (f *Formatter) PrintUpdateResults(results []update.Result) {
	f.PrintHeader("Library update")
	added := 0
	for _, r := range results {
		if r.Err != nil {
			f.PrintError(fmt.Sprintf("%s: %s", r.Name, pkgerrors.FormatCLISimple(r.Err)))
			continue
		}
		added += r.Added
		if r.Added > 0 {
			f.PrintSuccess(fmt.Sprintf("%s: %d new chapter(s)", r.Name, r.Added))
		}
	}
	f.PrintInfo(fmt.Sprintf("%d series checked, %d new chapter(s)", len(results), added))
}

// PrintReaderSettings prints the effective reader settings of a series
func (f *Formatter) PrintReaderSettings(rs core.ReaderSettings) {
	f.PrintDetail("Reading direction", string(rs.ReadingDirection))
	f.PrintDetail("Scaling", string(rs.Scaling))
	f.PrintDetail("Background", string(rs.BackgroundColor))
	f.PrintDetail("Fullscreen", strconv.FormatBool(rs.Fullscreen))
}

// PrintVersionInfo prints build and runtime information
func (f *Formatter) PrintVersionInfo(version, goVersion, os, arch, dataDir, logFile string) {
	f.PrintHeader("Tankobon")
	f.PrintDetail("Version", version)
	f.PrintDetail("Go version", goVersion)
	f.PrintDetail("OS/Arch", fmt.Sprintf("%s/%s", os, arch))
	f.PrintDetail("Data directory", f.FormatPath(dataDir))
	if logFile != "" {
		f.PrintDetail("Log file", f.FormatPath(logFile))
	}
}
