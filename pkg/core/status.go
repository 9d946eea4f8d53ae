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

package core

import (
	"sort"
	"strings"

	"Tankobon/pkg/util"
)

// Status is the publication state of a series
type Status string

const (
	StatusOngoing  Status = "ongoing"
	StatusComplete Status = "complete"
	StatusHiatus   Status = "hiatus"
	StatusUnknown  Status = "unknown"
)

// Valid reports whether s belongs to the closed status domain
func (s Status) Valid() bool {
	switch s {
	case StatusOngoing, StatusComplete, StatusHiatus, StatusUnknown:
		return true
	}
	return false
}

// statusLabels maps lower-cased site labels to a Status. Sources pass their
// raw label through ParseStatus; families may add labels of their own with
// ParseStatusWith.
var statusLabels = map[string]Status{
	// en
	"ongoing":    StatusOngoing,
	"on going":   StatusOngoing,
	"publishing": StatusOngoing,
	"releasing":  StatusOngoing,
	"updating":   StatusOngoing,
	"continuing": StatusOngoing,
	"completed":  StatusComplete,
	"complete":   StatusComplete,
	"finished":   StatusComplete,
	"ended":      StatusComplete,
	"end":        StatusComplete,
	"hiatus":     StatusHiatus,
	"on hiatus":  StatusHiatus,
	"on hold":    StatusHiatus,
	"paused":     StatusHiatus,
	"dropped":    StatusHiatus,
	"cancelled":  StatusHiatus,
	"canceled":   StatusHiatus,
	// fr
	"en cours":   StatusOngoing,
	"en attente": StatusHiatus,
	"en pause":   StatusHiatus,
	"terminé":    StatusComplete,
	"termine":    StatusComplete,
	"fini":       StatusComplete,
	"abandonné":  StatusHiatus,
	// es, pt
	"en curso":      StatusOngoing,
	"en emisión":    StatusOngoing,
	"emision":       StatusOngoing,
	"em andamento":  StatusOngoing,
	"em lançamento": StatusOngoing,
	"finalizado":    StatusComplete,
	"completo":      StatusComplete,
	"concluído":     StatusComplete,
	"pausado":       StatusHiatus,
	"em hiato":      StatusHiatus,
	// de
	"laufend":       StatusOngoing,
	"laufende":      StatusOngoing,
	"abgeschlossen": StatusComplete,
	"pausiert":      StatusHiatus,
	// it
	"in corso":   StatusOngoing,
	"completato": StatusComplete,
	"in pausa":   StatusHiatus,
	// ru
	"продолжается":  StatusOngoing,
	"выпускается":   StatusOngoing,
	"завершён":      StatusComplete,
	"завершен":      StatusComplete,
	"приостановлен": StatusHiatus,
	// ja, zh, ko
	"連載中": StatusOngoing,
	"連載":  StatusOngoing,
	"完結":  StatusComplete,
	"完结":  StatusComplete,
	"连载中": StatusOngoing,
	"休載":  StatusHiatus,
	"연재중": StatusOngoing,
	"완결":  StatusComplete,
	// ar
	"مستمرة": StatusOngoing,
	"مستمر":  StatusOngoing,
	"تمت":    StatusComplete,
	"مكتملة": StatusComplete,
	"متوقفة": StatusHiatus,
	// tr, id, vi
	"devam ediyor":   StatusOngoing,
	"tamamlandı":     StatusComplete,
	"berjalan":       StatusOngoing,
	"tamat":          StatusComplete,
	"đang tiến hành": StatusOngoing,
	"hoàn thành":     StatusComplete,
}

// ParseStatus maps a raw site label onto the status domain
func ParseStatus(label string) Status {
	return ParseStatusWith(label, nil)
}

// ParseStatusWith checks extra labels before the shared table
func ParseStatusWith(label string, extra map[string]Status) Status {
	key := strings.ToLower(util.CleanText(label))
	if key == "" {
		return StatusUnknown
	}
	if s, ok := extra[key]; ok && s.Valid() {
		return s
	}
	if s, ok := statusLabels[key]; ok {
		return s
	}
	// "Status: Ongoing" and similar decorations: the label that starts
	// first wins, the longer one on a tie
	best, at := StatusUnknown, len(key)+1
	for _, l := range decoratedLabels {
		if i := strings.Index(key, l); i >= 0 && i < at {
			best, at = statusLabels[l], i
		}
	}
	return best
}

// decoratedLabels are the labels matched inside longer text, longest first
var decoratedLabels = func() []string {
	var out []string
	for l := range statusLabels {
		if len(l) > 3 {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}()
