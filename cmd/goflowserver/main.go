package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kacperjurak/goloadflow/pkg/config"
	"github.com/kacperjurak/goloadflow/pkg/server"
)

func main() {
	cfg, serverConfig, timingFile := parseFlags()

	if err := config.LoadEnv(cfg, serverConfig); err != nil {
		log.Fatal("❌ Invalid environment: ", err)
	}

	srv, err := server.New(server.Options{
		Config:       cfg,
		ServerConfig: serverConfig,
		TimingFile:   timingFile,
	})
	if err != nil {
		log.Fatal("❌ Failed to create server: ", err)
	}

	done := setupGracefulShutdown(srv)

	if err := srv.Start(); err != nil {
		log.Fatal("❌ Failed to start server: ", err)
	}
	<-done
}

// parseFlags parses command line flags and returns configuration
func parseFlags() (*config.Config, *config.ServerConfig, string) {
	cfg := config.DefaultConfig()
	scfg := config.DefaultServerConfig()
	var timingFile string

	flag.StringVar(&scfg.Port, "port", scfg.Port, "HTTP port")
	flag.IntVar(&scfg.WorkerCount, "workers", scfg.WorkerCount, "Number of batch workers")
	flag.StringVar(&scfg.WebhookURL, "webhook", scfg.WebhookURL, "Webhook URL for batch results")
	flag.IntVar(&scfg.CacheSize, "cache", scfg.CacheSize, "Solve result cache entries (0 disables)")
	flag.BoolVar(&scfg.EnableProfiling, "profile", scfg.EnableProfiling, "Enable pprof profiling")
	flag.StringVar(&scfg.ProfilingPort, "profile-port", scfg.ProfilingPort, "pprof port")
	flag.StringVar(&cfg.Method, "method", cfg.Method, "Solve method: nr, lm or bfgs")
	flag.StringVar(&cfg.LinearSolver, "linear", cfg.LinearSolver, "Linear solver: gauss, lu or sparse")
	flag.IntVar(&cfg.Workers, "sweep-workers", cfg.Workers, "Concurrent solves per sweep request")
	flag.BoolVar(&cfg.Quiet, "quiet", cfg.Quiet, "Suppress verbose output")
	flag.StringVar(&timingFile, "timing", "", "Append batch timing rows to this CSV file")

	flag.Parse()

	cfg.HTTPServer = true
	cfg.EnableProfiling = scfg.EnableProfiling
	return cfg, scfg, timingFile
}

// setupGracefulShutdown shuts the server down on SIGINT or SIGTERM. The
// returned channel closes once shutdown has finished.
func setupGracefulShutdown(srv *server.Server) <-chan struct{} {
	done := make(chan struct{})
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer close(done)
		<-c
		log.Println("🛑 Received shutdown signal...")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()
	return done
}
