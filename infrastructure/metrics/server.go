package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/ledgerkit/ledgerd/util/panics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Path is the path the metrics are served on.
const Path = "/metrics"

const readHeaderTimeout = 10 * time.Second

// Server serves the metrics of the default prometheus registry over HTTP.
type Server struct {
	listener net.Listener
	server   *http.Server
}

// Start listens on listenAddr and serves the metrics in the background.
func Start(listenAddr string) (*Server, error) {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", listenAddr)
	}

	mux := http.NewServeMux()
	mux.Handle(Path, promhttp.Handler())
	s := &Server{
		listener: listener,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}

	spawn := panics.GoroutineWrapperFunc(log)
	spawn("metrics.Server.serve", func() {
		log.Infof("Metrics server listening on %s", listener.Addr())
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server stopped: %s", err)
		}
	})
	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop shuts the server down, waiting for in-flight requests until ctx
// is done.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
