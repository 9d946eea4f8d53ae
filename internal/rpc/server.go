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

package rpc

import (
	"context"
	"io"
	"net/rpc"
	"net/rpc/jsonrpc"

	"Tankobon/pkg/engine"
)

// Server exposes an engine over JSON-RPC 1.0
type Server struct {
	engine  *engine.Engine
	version string
	events  *EventLog
	rpc     *rpc.Server

	ctx         context.Context
	stop        context.CancelFunc
	unsubscribe func()
}

// NewServer registers every service for e. Download events are buffered
// from this point on for Downloads.Events.
func NewServer(e *engine.Engine, version string) (*Server, error) {
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		engine:  e,
		version: version,
		events:  NewEventLog(defaultEventBuffer),
		rpc:     rpc.NewServer(),
		ctx:     ctx,
		stop:    stop,
	}

	services := map[string]interface{}{
		"Version":   &VersionService{server: s},
		"Sources":   &SourcesService{server: s},
		"Library":   &LibraryService{server: s},
		"Reader":    &ReaderService{server: s},
		"Downloads": &DownloadsService{server: s},
		"Updates":   &UpdatesService{server: s},
		"Settings":  &SettingsService{server: s},
	}
	for name, svc := range services {
		if err := s.rpc.RegisterName(name, svc); err != nil {
			stop()
			return nil, err
		}
	}

	s.unsubscribe = e.SubscribeDownloads(s.events.Append)
	return s, nil
}

// Events returns the buffered download events
func (s *Server) Events() *EventLog {
	return s.events
}

// ServeConn serves one client until conn is closed. Every request runs on
// its own goroutine, so a pending long-poll does not block other calls.
func (s *Server) ServeConn(conn io.ReadWriteCloser) {
	s.rpc.ServeCodec(jsonrpc.NewServerCodec(conn))
}

// Close wakes pending long-polls and stops event buffering
func (s *Server) Close() {
	s.stop()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
