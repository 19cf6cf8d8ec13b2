package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tchatsapp/core/internal/adminapi"
	"github.com/tchatsapp/core/internal/audit"
	"github.com/tchatsapp/core/internal/metrics"
	"github.com/tchatsapp/core/pkg/messages"
	"github.com/tchatsapp/core/pkg/registry"
	"github.com/tchatsapp/core/pkg/server"
)

const (
	defaultPort      = 1666
	defaultAdminPort = 0
	defaultAuditDB   = "./data/audit.db"
)

var (
	port      = flag.Int("port", envInt("TCHATSAPP_PORT", defaultPort), "port the relay listens on")
	adminPort = flag.Int("admin-port", envInt("TCHATSAPP_ADMIN_PORT", defaultAdminPort), "port for /healthz and /metrics (0 disables)")
	auditDB   = flag.String("audit-db", envString("TCHATSAPP_AUDIT_DB", ""), "sqlite path for the delivery ledger (empty disables)")
)

func main() {
	flag.Parse()
	printBanner()

	reg := registry.New()
	messages.RegisterAll(reg)

	promReg := prometheus.NewRegistry()
	relayMetrics := metrics.New(promReg)

	opts := []server.Option{server.WithMetrics(relayMetrics)}

	var ledger *audit.Ledger
	if *auditDB != "" {
		if err := os.MkdirAll("./data", 0o755); err != nil {
			log.Fatalf("create data directory: %v", err)
		}
		var err error
		ledger, err = audit.Open(*auditDB)
		if err != nil {
			log.Fatalf("open audit ledger: %v", err)
		}
		opts = append(opts, server.WithAuditor(ledger))
		log.Printf("audit ledger enabled at %s", *auditDB)
	}

	relay := server.New(fmt.Sprintf(":%d", *port), reg, opts...)
	if err := relay.Start(); err != nil {
		log.Fatalf("start relay: %v", err)
	}
	log.Printf("relay listening on :%d", *port)

	admin := adminapi.New(*adminPort, promReg)
	if err := admin.Start(); err != nil {
		log.Fatalf("start admin server: %v", err)
	}
	if *adminPort != 0 {
		log.Printf("admin surface listening on :%d (/healthz, /metrics)", *adminPort)
	}

	waitForShutdown(relay, admin, ledger)
}

func printBanner() {
	fmt.Println("----------------------------------------")
	fmt.Println(" tchatsapp relay")
	fmt.Println("----------------------------------------")
}

func waitForShutdown(relay *server.RelayServer, admin *adminapi.Server, ledger *audit.Ledger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := admin.Stop(ctx); err != nil {
		log.Printf("admin server shutdown: %v", err)
	}

	if err := relay.Stop(); err != nil {
		log.Printf("relay shutdown: %v", err)
	}

	if ledger != nil {
		if err := ledger.Close(); err != nil {
			log.Printf("audit ledger close: %v", err)
		}
	}

	log.Println("stopped")
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return def
	}
	return n
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
