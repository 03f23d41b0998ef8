// Standalone demo server: runs the shopkeeper plugin against the in-memory
// host with a real tick loop, and exposes the admin console over websocket.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"shopcraft.gg/internal/host"
	"shopcraft.gg/internal/host/hosttest"
	"shopcraft.gg/internal/persistence/indexdb"
	"shopcraft.gg/internal/plugin"
	"shopcraft.gg/internal/shop"
	"shopcraft.gg/internal/transport/admin"
	"shopcraft.gg/internal/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configPath = flag.String("config", "./configs/config.yml", "tuning config path")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		token      = flag.String("admin_token", "", "admin console token (or SC_ADMIN_TOKEN; empty allows all)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite audit index")
		sweepDays  = flag.Int("sweep_inactive_days", 0, "remove shops of owners inactive this many days (0 disables)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("config not found (%s); using defaults", *configPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load config: %v", err)
		}
	}
	if !filepath.IsAbs(tune.SaveFile) {
		tune.SaveFile = filepath.Join(*dataDir, filepath.Base(tune.SaveFile))
	}
	if !filepath.IsAbs(tune.AuditDBFile) {
		tune.AuditDBFile = filepath.Join(*dataDir, filepath.Base(tune.AuditDBFile))
	}

	var idx *indexdb.SQLiteAudit
	var auditRec shop.Audit
	if !*disableDB {
		idx, err = indexdb.Open(tune.AuditDBFile, logger)
		if err != nil {
			logger.Fatalf("open audit index: %v", err)
		}
		defer idx.Close()
		auditRec = idx
	}

	fake := hosttest.New()
	world := fake.AddWorld("overworld")
	for cx := -2; cx <= 2; cx++ {
		for cz := -2; cz <= 2; cz++ {
			world.LoadChunk(host.ChunkKey{CX: cx, CZ: cz})
		}
	}

	p := plugin.New(fake, tune, logger, auditRec)
	if err := p.Enable(); err != nil {
		logger.Fatalf("enable: %v", err)
	}
	logger.Printf("plugin enabled: %d shops", p.Registry.Count())

	ctx, cancel := signalContext()
	defer cancel()

	adminToken := strings.TrimSpace(*token)
	if adminToken == "" {
		adminToken = strings.TrimSpace(os.Getenv("SC_ADMIN_TOKEN"))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/ws", admin.NewServer(p, idx, adminToken, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()
	go func() {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("ListenAndServe: %v", err)
			cancel()
		}
	}()

	// The main goroutine is the logic thread.
	tickRate := tune.TickRateHz
	if tickRate <= 0 {
		tickRate = 20
	}
	interval := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweepEvery := 20 * 60 * 10 // re-check inactivity every ten minutes of ticks
	ticks := 0
	for {
		select {
		case <-ctx.Done():
			p.Disable()
			logger.Printf("stopped at tick %d", fake.Scheduler().CurrentTick())
			return
		case <-ticker.C:
			fake.Tick(1)
			ticks++
			if *sweepDays > 0 && ticks%sweepEvery == 0 {
				p.SweepInactiveOwners(time.Duration(*sweepDays) * 24 * time.Hour)
			}
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
