// Command remote is the Remote Execution Core daemon (spec.md §6 "CLI"):
// it binds an HTTP listener and serves sessions, one-shot execution, and
// file operations behind a bearer token, following the flag-parsing and
// startup-logging style of anvillm's cmd/anvilwebgw.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"rec/internal/audit"
	"rec/internal/config"
	"rec/internal/debug"
	"rec/internal/eventbus"
	"rec/internal/httpapi"
	"rec/internal/recsession"
	"rec/internal/supervisor"
)

const (
	exitOK            = 0
	exitBindFailure   = 1
	exitAuthMisconfig = 2
)

func main() {
	host := flag.String("host", "0.0.0.0", "address to bind")
	port := flag.Int("port", 8000, "port to bind")
	authToken := flag.String("auth-token", "", "bearer token clients must present (random if omitted)")
	configPath := flag.String("config", "", "path to a tunables YAML file")
	debugFlag := flag.Bool("debug", false, "enable verbose logging and include tracebacks in error responses")
	flag.Parse()

	debug.Enabled = *debugFlag

	tokenFlagSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "auth-token" {
			tokenFlagSet = true
		}
	})
	if tokenFlagSet && *authToken == "" {
		log.Printf("auth-token flag was set to an empty value")
		os.Exit(exitAuthMisconfig)
	}

	token := *authToken
	if token == "" {
		token = uuid.New().String()
		log.Printf("no --auth-token given; generated a dev token: %s", token)
		log.Printf("WARNING: this token is not persisted; pass --auth-token for a stable deployment")
	}

	tun, err := config.Load(*configPath)
	if err != nil {
		log.Printf("loading config: %v", err)
		os.Exit(exitBindFailure)
	}

	bus := eventbus.New()
	auditLog := audit.NewLog()
	reg := recsession.NewRegistry(tun, bus)

	server := httpapi.New(reg, auditLog, bus, token)
	addr := net.JoinHostPort(*host, fmt.Sprint(*port))

	if err := supervisor.Run(addr, server, reg, server.CloseRequested(), firstNonZero(tun.ShutdownDeadline, 5*time.Second)); err != nil {
		log.Printf("server error: %v", err)
		os.Exit(exitBindFailure)
	}
	os.Exit(exitOK)
}

func firstNonZero(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
