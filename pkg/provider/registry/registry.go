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

package registry

import (
	"fmt"
	"sort"
	"sync"

	"Tankobon/pkg/errors"
	"Tankobon/pkg/provider"
)

// Constructor creates a provider instance
type Constructor func(env provider.Env) (provider.Provider, error)

// Registrar receives the instantiated providers
type Registrar interface {
	RegisterProvider(p provider.Provider) error
}

type entry struct {
	id          string
	constructor Constructor
}

// Registry holds provider constructors
type Registry struct {
	entries []entry
	mu      sync.RWMutex
}

// global registry instance
var global = &Registry{}

// Register adds a provider constructor to the global registry. Sources call
// it from init().
func Register(id string, constructor Constructor) {
	global.mu.Lock()
	defer global.mu.Unlock()

	for _, e := range global.entries {
		if e.id == id {
			panic(fmt.Sprintf("registry: source %q registered twice", id))
		}
	}
	global.entries = append(global.entries, entry{id: id, constructor: constructor})
}

// LoadAll creates every registered provider and hands it to r. A source
// that fails to construct is skipped; the failures are returned joined.
func LoadAll(r Registrar, env provider.Env) error {
	global.mu.RLock()
	entries := make([]entry, len(global.entries))
	copy(entries, global.entries)
	global.mu.RUnlock()

	log := env.Log()
	var failed []error
	loaded := 0
	for _, e := range entries {
		p, err := e.constructor(env)
		if err == nil && p == nil {
			continue
		}
		if err == nil {
			err = r.RegisterProvider(p)
		}
		if err != nil {
			log.Error("[registry] failed to load source %s: %v", e.id, err)
			failed = append(failed, errors.Track(err).WithContext("source", e.id).Error())
			continue
		}
		loaded++
	}

	log.Info("[registry] loaded %d sources", loaded)
	if len(failed) > 0 {
		return errors.Join(failed...)
	}
	return nil
}

// IDs lists the registered source ids in sorted order
func IDs() []string {
	global.mu.RLock()
	defer global.mu.RUnlock()

	ids := make([]string, len(global.entries))
	for i, e := range global.entries {
		ids[i] = e.id
	}
	sort.Strings(ids)
	return ids
}

// Clear removes all registered constructors (useful for testing)
func Clear() {
	global.mu.Lock()
	defer global.mu.Unlock()

	global.entries = global.entries[:0]
}

// Count returns the number of registered constructors
func Count() int {
	global.mu.RLock()
	defer global.mu.RUnlock()

	return len(global.entries)
}
