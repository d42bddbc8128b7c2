// Command tilestat reports the shared cache manager's current size and
// capacity, and can optionally serve Prometheus metrics over HTTP for
// scraping while a long-running process warms or drains the cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gracefulearth/tilecache/cachemgr"
)

func main() {
	serve := flag.Bool("serve", false, "serve Prometheus metrics at /metrics instead of printing stats once")
	addr := flag.String("addr", ":9090", "listen address for -serve")
	flag.Parse()

	mgr := cachemgr.Default()

	if !*serve {
		printStats(mgr)
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("serving metrics on %s/metrics\n", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printStats(mgr *cachemgr.Manager) {
	cfg := mgr.Config()
	fmt.Printf("cache capacity:  %d bytes (%d MiB)\n", mgr.CacheCapacity(), mgr.CacheCapacity()/(1<<20))
	fmt.Printf("cache size:      %d bytes\n", mgr.CacheSize())
	fmt.Printf("compress mode:   %v\n", cfg.CompressMode)
	fmt.Printf("chunk size:      %d bytes\n", cfg.ChunkSizeBytes)
}
