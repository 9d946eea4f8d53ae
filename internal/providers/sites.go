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

package providers

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"Tankobon/pkg/errors"
	"Tankobon/pkg/provider"
	"Tankobon/pkg/provider/foolslide"
	"Tankobon/pkg/provider/genkan"
	"Tankobon/pkg/provider/guya"
	"Tankobon/pkg/provider/madara"
	"Tankobon/pkg/provider/mangadex"
	"Tankobon/pkg/provider/registry"
)

//go:embed sites.yaml
var sitesYAML []byte

// Catalog lists the concrete sites of every adapter family
type Catalog struct {
	Madara    []madara.Config    `yaml:"madara"`
	Genkan    []genkan.Config    `yaml:"genkan"`
	FoolSlide []foolslide.Config `yaml:"foolslide"`
	Guya      []guya.Config      `yaml:"guya"`
	MangaDex  []mangadex.Config  `yaml:"mangadex"`
}

// ParseCatalog decodes a site catalog and checks ids are unique
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Track(fmt.Errorf("%w: site catalog: %v", errors.ErrParse, err)).Error()
	}

	seen := make(map[string]bool)
	for _, id := range c.ids() {
		if id == "" {
			return nil, errors.Track(fmt.Errorf("%w: site without id", errors.ErrValidation)).Error()
		}
		if seen[id] {
			return nil, errors.Track(fmt.Errorf("%w: duplicate site id %q", errors.ErrValidation, id)).Error()
		}
		seen[id] = true
	}
	return &c, nil
}

func (c *Catalog) ids() []string {
	var ids []string
	for _, s := range c.Madara {
		ids = append(ids, s.ID)
	}
	for _, s := range c.Genkan {
		ids = append(ids, s.ID)
	}
	for _, s := range c.FoolSlide {
		ids = append(ids, s.ID)
	}
	for _, s := range c.Guya {
		ids = append(ids, s.ID)
	}
	for _, s := range c.MangaDex {
		ids = append(ids, s.ID)
	}
	return ids
}

// Register adds a constructor per site to the global registry
func (c *Catalog) Register() {
	for _, cfg := range c.Madara {
		cfg := cfg
		registry.Register(cfg.ID, func(env provider.Env) (provider.Provider, error) { return madara.New(cfg, env) })
	}
	for _, cfg := range c.Genkan {
		cfg := cfg
		registry.Register(cfg.ID, func(env provider.Env) (provider.Provider, error) { return genkan.New(cfg, env) })
	}
	for _, cfg := range c.FoolSlide {
		cfg := cfg
		registry.Register(cfg.ID, func(env provider.Env) (provider.Provider, error) { return foolslide.New(cfg, env) })
	}
	for _, cfg := range c.Guya {
		cfg := cfg
		registry.Register(cfg.ID, func(env provider.Env) (provider.Provider, error) { return guya.New(cfg, env) })
	}
	for _, cfg := range c.MangaDex {
		cfg := cfg
		registry.Register(cfg.ID, func(env provider.Env) (provider.Provider, error) { return mangadex.New(cfg, env) })
	}
}

func init() {
	catalog, err := ParseCatalog(sitesYAML)
	if err != nil {
		panic(err)
	}
	catalog.Register()
}
