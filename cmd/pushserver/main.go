package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/codepair/codepair/internal/config"
	"github.com/codepair/codepair/internal/pushsync"
	"github.com/codepair/codepair/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8001", "server address")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for websocket upgrades")
	flag.Parse()

	logger := log.New(os.Stderr, "[codepair] ", log.LstdFlags)

	cfg, err := config.NewPushConfig(addr, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	pushServer := pushsync.NewServer(logger, statsUpdater, cfg.AllowedOrigins)
	mux.HandleFunc("GET /ws", pushServer.ServeWs)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go pushServer.Run()

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("starting server on %s\n", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down push server...")
	if err := pushServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("push server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
