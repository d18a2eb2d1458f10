package profiling

import (
	"net"
	"net/http"
	"time"

	// Registers the pprof handlers on http.DefaultServeMux
	_ "net/http/pprof"

	"github.com/ledgerkit/ledgerd/infrastructure/logger"
	"github.com/ledgerkit/ledgerd/util/panics"
)

const readHeaderTimeout = 10 * time.Second

// Start serves the pprof endpoints on the given port in the background.
// Requests to / are redirected to /debug/pprof.
func Start(port string, log *logger.Logger) {
	spawn := panics.GoroutineWrapperFunc(log)
	spawn("profiling.Start", func() {
		listenAddr := net.JoinHostPort("", port)
		http.Handle("/", http.RedirectHandler("/debug/pprof", http.StatusSeeOther))
		server := &http.Server{
			Addr:              listenAddr,
			ReadHeaderTimeout: readHeaderTimeout,
		}
		log.Infof("Profile server listening on %s", listenAddr)
		log.Error(server.ListenAndServe())
	})
}
