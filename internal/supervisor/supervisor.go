// Package supervisor implements process-wide startup and shutdown (C8,
// spec.md §4.8): bind the port, print a startup line, and on SIGINT/
// SIGTERM run a bounded graceful teardown of every live session — the
// same signal.Notify shutdown shape anvillm's cmd/anvilsrv uses for its
// own daemon, minus the double-fork/daemonize behavior (spec.md's
// Non-goals rule out persisting state across restarts, and REC is meant
// to run in the foreground under whatever process manager placed it).
package supervisor

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rec/internal/recsession"
)

// Run binds addr, serves handler, and blocks until SIGINT, SIGTERM, or the
// handler's own close request fires; it then runs a bounded graceful
// shutdown of both the HTTP server and every live session. Returns nil on
// a clean shutdown, or the error that caused Run to give up (e.g. a bind
// failure), so main can choose the right exit code.
func Run(addr string, handler http.Handler, reg *recsession.Registry, closeRequested <-chan struct{}, shutdownDeadline time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Starting runtime on %s", addr)
		serveErr <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	case <-closeRequested:
		log.Printf("close requested, shutting down")
	}

	shutdownSessions(reg, shutdownDeadline)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		srv.Close()
	}
	<-serveErr
	return nil
}

func shutdownSessions(reg *recsession.Registry, deadline time.Duration) {
	log.Printf("closing %d session(s)", len(reg.List()))
	reg.CloseAll(deadline)
}
