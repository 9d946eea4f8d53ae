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

// Package engine is the host interface front ends talk to. It wires the
// sources, the library, the page cache, the download queue and the update
// service together.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"Tankobon/pkg/cache"
	"Tankobon/pkg/config"
	"Tankobon/pkg/engine/download"
	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/engine/network"
	"Tankobon/pkg/engine/update"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/library"
	"Tankobon/pkg/provider"
	"Tankobon/pkg/provider/registry"
)

// Options are the collaborators of an Engine. Nil fields are built from
// the configuration.
type Options struct {
	Config *config.Config
	Logger logger.Logger
	Store  *library.Store
	Cache  *cache.Cache
}

// Engine is the central component serving every front end
type Engine struct {
	Config   *config.Config
	Logger   logger.Logger
	Store    *library.Store
	Cache    *cache.Cache
	Download *download.Service
	Updates  *update.Service

	limiter *network.RateLimiter
	http    *network.Client

	// Provider registry
	providers     map[string]provider.Provider
	providerMutex sync.RWMutex

	// Error formatting options
	debugMode   bool
	verboseMode bool

	ownsStore  bool
	ownsLogger bool
}

// New creates an Engine. Sources are not loaded; call LoadProviders or
// RegisterProvider.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.New()
	}
	settings := cfg.Settings()

	e := &Engine{
		Config:    cfg,
		Logger:    opts.Logger,
		Store:     opts.Store,
		Cache:     opts.Cache,
		providers: make(map[string]provider.Provider),
	}

	if e.Logger == nil {
		svc := logger.NewService(settings.LogPath())
		svc.SetLevel(settings.LogLevel)
		e.Logger = svc
		e.ownsLogger = true
	}
	if e.Store == nil {
		store, err := library.Open(settings.LibraryPath())
		if err != nil {
			return nil, err
		}
		e.Store = store
		e.ownsStore = true
	}
	if e.Cache == nil {
		e.Cache = cache.New(settings.DataDir)
	}

	e.limiter = network.NewRateLimiter(settings.RequestsPerSec, 1)
	e.http = e.Env().Client(nil)

	e.Download = download.NewService(e.Store, e.Cache, e, e.Logger, download.Options{
		PageDelay:   settings.PageDelay,
		RetryBudget: settings.RetryBudget,
		RetryDelay:  settings.RetryDelay,
	})
	e.Updates = update.NewService(e.Store, e, e.Cache, e.Logger)

	e.Logger.Info("Engine initialized (library %s)", e.Store.Path())
	return e, nil
}

// Env is the construction environment handed to every source
func (e *Engine) Env() provider.Env {
	settings := e.Config.Settings()
	return provider.Env{
		Logger: e.Logger,
		HTTP: network.Options{
			Timeout:    settings.NetworkTimeout,
			Retries:    2,
			RetryDelay: settings.RetryDelay,
			Limiter:    e.limiter,
			Logger:     e.Logger,
		},
	}
}

// LoadProviders builds every registered source. Sources that fail to build
// are skipped and reported in the returned error.
func (e *Engine) LoadProviders() error {
	return registry.LoadAll(e, e.Env())
}

// Start resumes the download queue and sets up scheduled updates
func (e *Engine) Start(ctx context.Context) error {
	settings := e.Config.Settings()

	if err := e.Download.Start(ctx); err != nil {
		return err
	}
	if err := e.Updates.Schedule(settings.UpdateSchedule, nil); err != nil {
		return err
	}
	if settings.UpdateAtStartup {
		e.Updates.UpdateAllAsync(context.Background(), nil, func(results []update.Result, err error) {
			if err != nil {
				e.Logger.Warn("[update] startup update: %v", err)
			}
		})
	}
	return nil
}

// RegisterProvider adds a provider to the registry
func (e *Engine) RegisterProvider(p provider.Provider) error {
	if p == nil {
		return errors.Track(fmt.Errorf("provider is nil")).Error()
	}

	e.providerMutex.Lock()
	defer e.providerMutex.Unlock()

	info := p.Info()
	if info.ID == "" {
		return errors.Track(fmt.Errorf("provider has empty ID")).Error()
	}
	if _, exists := e.providers[info.ID]; exists {
		return errors.Track(fmt.Errorf("provider with ID '%s' already registered", info.ID)).Error()
	}

	e.providers[info.ID] = p
	e.Logger.Debug("Registered provider: %s (%s)", info.Name, info.ID)
	return nil
}

// Provider retrieves a registered provider by ID
func (e *Engine) Provider(id string) (provider.Provider, error) {
	e.providerMutex.RLock()
	defer e.providerMutex.RUnlock()

	p, exists := e.providers[id]
	if !exists {
		return nil, errors.Track(fmt.Errorf("%w: provider '%s'", errors.ErrNotFound, id)).
			WithContext("available_providers", e.providerIDs()).
			AsNotFound().
			Error()
	}
	return p, nil
}

// Sources lists the usable sources by name. NSFW sources are left out
// unless the nsfw setting is on.
func (e *Engine) Sources() []provider.Info {
	nsfw := e.Config.Settings().NSFW

	e.providerMutex.RLock()
	out := make([]provider.Info, 0, len(e.providers))
	for _, p := range e.providers {
		info := p.Info()
		if !info.Enabled() || (info.NSFW && !nsfw) {
			continue
		}
		out = append(out, info)
	}
	e.providerMutex.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ProviderCount returns the number of registered providers
func (e *Engine) ProviderCount() int {
	e.providerMutex.RLock()
	defer e.providerMutex.RUnlock()
	return len(e.providers)
}

func (e *Engine) providerIDs() []string {
	ids := make([]string, 0, len(e.providers))
	for id := range e.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown stops background work and releases what the engine opened
func (e *Engine) Shutdown() error {
	e.Logger.Info("Shutting down engine...")

	e.Updates.StopSchedule()
	e.Download.Stop()
	e.Updates.Wait()

	var errs []error
	if e.ownsStore {
		errs = append(errs, e.Store.Close())
	}
	if e.ownsLogger {
		if closer, ok := e.Logger.(interface{ Close() error }); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

// SetDebugMode enables or disables debug mode for error formatting
func (e *Engine) SetDebugMode(enabled bool) {
	e.debugMode = enabled
	e.applyVerbosity()
	if enabled {
		e.Logger.Debug("Debug mode enabled")
	}
}

// SetVerboseMode enables or disables verbose mode for error formatting
func (e *Engine) SetVerboseMode(enabled bool) {
	e.verboseMode = enabled
	e.applyVerbosity()
	if enabled {
		e.Logger.Info("Verbose mode enabled")
	}
}

func (e *Engine) applyVerbosity() {
	loud := e.debugMode || e.verboseMode
	if loud {
		e.Logger.SetLevel(logger.LevelDebug)
	} else {
		e.Logger.SetLevel(e.Config.Settings().LogLevel)
	}
	if svc, ok := e.Logger.(*logger.Service); ok {
		svc.SetConsoleOutput(loud)
	}
}

// FormatError formats an error based on the current verbosity settings
func (e *Engine) FormatError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case e.verboseMode:
		return errors.FormatCLIDebug(err)
	case e.debugMode:
		return errors.FormatCLI(err)
	default:
		return errors.FormatCLISimple(err)
	}
}
