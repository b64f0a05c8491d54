// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

package pprof

import (
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gobts/gobts/internal/config"
)

const readTimeout = 3 * time.Second

// CreatePProfServer binds the pprof listener and serves it in the
// background, mirroring metrics.CreateMetricsServer's bind-then-return
// shape so a port conflict is reported synchronously.
func CreatePProfServer(config *config.Config) error {
	if !config.PProf.Enabled {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", config.PProf.Bind, config.PProf.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind pprof listener on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readTimeout,
	}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()

	return nil
}
