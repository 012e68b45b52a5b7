// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// httpServer serves one handler in the background. Start binds the port
// before returning so address errors reach the caller.
type httpServer struct {
	name   string
	server *http.Server
}

func newHTTPServer(name string, port int, handler http.Handler) *httpServer {
	return &httpServer{
		name: name,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start listens on the configured port and serves until Shutdown.
func (h *httpServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("%s server failed to listen on %s: %w", h.name, h.server.Addr, err)
	}

	go func() {
		logrus.Infof("%s server listening on %s", h.name, ln.Addr())
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("%s server stopped unexpectedly: %v", h.name, err)
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (h *httpServer) Shutdown(ctx context.Context) error {
	logrus.Infof("shutting down %s server...", h.name)
	if err := h.server.Shutdown(ctx); err != nil {
		return err
	}
	logrus.Infof("%s server stopped", h.name)
	return nil
}

// APIServer serves the playthrough REST API.
type APIServer struct {
	*httpServer
}

// NewAPIServer creates the REST API server around handler.
func NewAPIServer(port int, handler http.Handler) *APIServer {
	return &APIServer{httpServer: newHTTPServer("API", port, handler)}
}
