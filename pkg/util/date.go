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

package util

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order after month names were translated to English
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2 January, 2006",
	"January 02, 2006",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"02.01.2006",
	"01-02-2006",
	"02-01-2006",
	"January 2006",
	"Jan 2006",
}

// monthNames holds localized month names and abbreviations
var monthNames = map[string]string{
	// fr
	"janvier": "January", "février": "February", "fevrier": "February", "mars": "March",
	"avril": "April", "mai": "May", "juin": "June", "juillet": "July", "août": "August",
	"aout": "August", "septembre": "September", "octobre": "October", "novembre": "November",
	"décembre": "December", "decembre": "December",
	// es, pt
	"enero": "January", "febrero": "February", "marzo": "March", "abril": "April",
	"mayo": "May", "junio": "June", "julio": "July", "agosto": "August",
	"septiembre": "September", "setiembre": "September", "octubre": "October",
	"noviembre": "November", "diciembre": "December",
	"janeiro": "January", "fevereiro": "February", "março": "March", "maio": "May",
	"junho": "June", "julho": "July", "setembro": "September", "outubro": "October",
	"novembro": "November", "dezembro": "December",
	// de
	"januar": "January", "februar": "February", "märz": "March", "juni": "June",
	"juli": "July", "oktober": "October", "dezember": "December",
	// it
	"gennaio": "January", "febbraio": "February", "aprile": "April", "maggio": "May",
	"giugno": "June", "luglio": "July", "settembre": "September", "ottobre": "October",
	"dicembre": "December",
	// id, tr
	"januari": "January", "februari": "February", "maret": "March", "mei": "May",
	"agustus": "August", "desember": "December", "ocak": "January", "şubat": "February",
	"nisan": "April", "mayıs": "May", "haziran": "June", "temmuz": "July",
	"ağustos": "August", "eylül": "September", "ekim": "October", "kasım": "November",
	"aralık": "December",
}

var (
	wordRun      = regexp.MustCompile(`\p{L}+`)
	ordinals     = regexp.MustCompile(`(\d+)(st|nd|rd|th)\b`)
	relativeExpr = regexp.MustCompile(`(\d+|an?|one)\s*(second|sec|minute|min|hour|hr|day|week|month|year|seconde|heure|jour|semaine|mois|an|segundo|minuto|hora|día|dia|semana|mes|mês|año|ano|tag|stunde|woche|monat|jahr)s?`)
	// "il y a", "hace", "há", "vor" put the number after the marker
	agoMarkers = []string{"ago", "il y a", "hace", "há", "vor", "fa", "yang lalu", "önce", "trước"}
)

var relativeUnits = map[string]time.Duration{
	"second": time.Second, "sec": time.Second, "seconde": time.Second, "segundo": time.Second,
	"minute": time.Minute, "min": time.Minute, "minuto": time.Minute,
	"hour": time.Hour, "hr": time.Hour, "heure": time.Hour, "hora": time.Hour, "stunde": time.Hour,
	"day": 24 * time.Hour, "jour": 24 * time.Hour, "día": 24 * time.Hour, "dia": 24 * time.Hour, "tag": 24 * time.Hour,
	"week": 7 * 24 * time.Hour, "semaine": 7 * 24 * time.Hour, "semana": 7 * 24 * time.Hour, "woche": 7 * 24 * time.Hour,
}

// ParseNullableDate parses a date as shown by a source site. It returns nil
// when nothing parseable is present; callers keep the chapter undated.
func ParseNullableDate(dateStr string, layouts ...string) *time.Time {
	return ParseDateAt(dateStr, time.Now(), layouts...)
}

// ParseDateAt is ParseNullableDate with an explicit reference time for
// relative expressions such as "3 days ago".
func ParseDateAt(dateStr string, now time.Time, layouts ...string) *time.Time {
	raw := CleanText(dateStr)
	s := strings.ToLower(raw)
	if s == "" {
		return nil
	}

	switch s {
	case "today", "just now", "aujourd'hui", "hoy", "hoje", "heute", "new", "now":
		return dateOnly(now)
	case "yesterday", "hier", "ayer", "ontem", "gestern":
		return dateOnly(now.AddDate(0, 0, -1))
	}

	if t := parseRelative(s, now); t != nil {
		return t
	}

	s = ordinals.ReplaceAllString(raw, "$1")
	s = wordRun.ReplaceAllStringFunc(s, func(w string) string {
		if en, ok := monthNames[strings.ToLower(w)]; ok {
			return en
		}
		return w
	})

	candidates := append(append([]string(nil), layouts...), dateLayouts...)
	for _, layout := range candidates {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t)
		}
	}

	// epoch seconds or milliseconds from JSON sources
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 100000000 {
		if n > 100000000000 {
			n /= 1000
		}
		return dateOnly(time.Unix(n, 0))
	}

	return nil
}

func parseRelative(s string, now time.Time) *time.Time {
	marked := false
	for _, m := range agoMarkers {
		if strings.Contains(s, m) {
			marked = true
			break
		}
	}
	if !marked {
		return nil
	}

	match := relativeExpr.FindStringSubmatch(s)
	if match == nil {
		return nil
	}

	n := 1
	if v, err := strconv.Atoi(match[1]); err == nil {
		n = v
	}

	unit := match[2]
	switch unit {
	case "month", "mois", "mes", "mês", "monat":
		return dateOnly(now.AddDate(0, -n, 0))
	case "year", "an", "año", "ano", "jahr":
		return dateOnly(now.AddDate(-n, 0, 0))
	}
	if d, ok := relativeUnits[unit]; ok {
		return dateOnly(now.Add(-time.Duration(n) * d))
	}
	return nil
}

// dateOnly keeps the calendar date of t, as seen in t's own location
func dateOnly(t time.Time) *time.Time {
	y, m, d := t.Date()
	out := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &out
}

// FormatDate formats a date for display
func FormatDate(date *time.Time) string {
	if date == nil || date.IsZero() {
		return "-"
	}
	return date.Format("2006-01-02")
}
