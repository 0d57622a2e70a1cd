package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codewandler/chatlog-go/adapters/nats"
	promadapter "github.com/codewandler/chatlog-go/adapters/prometheus"
	"github.com/codewandler/chatlog-go/core/actor"
	"github.com/codewandler/chatlog-go/core/chatlog"
	"github.com/codewandler/chatlog-go/internal/backend"
	"github.com/codewandler/chatlog-go/internal/config"
	"github.com/codewandler/chatlog-go/ports/kv"
)

// === Config ===

// NOTE: run nats: docker run --net=host nats:latest -js
// then: CHATLOG_BACKEND=nats go run ./cmd/loadtest

var (
	N          = getEnvInt("N", 2_000)   // appends per writer
	keys       = getEnvInt("KEYS", 16)   // distinct chat logs
	writers    = getEnvInt("WRITERS", 4) // concurrent writers per key
	reportStep = getEnvInt("B", 10_000)
	useTC      = getEnvBool("TESTCONTAINER", false)
	holdOpen   = getEnvBool("HOLD", false)
)

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	return v == "1" || strings.ToLower(v) == "true"
}

func getEnv(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, fmt.Sprintf("%d", fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func main() {
	os.Exit(run())
}

// run returns the process exit code. Deferred cleanup has finished by the
// time it returns.
func run() int {
	cfg, err := config.Load(config.LoadOptions{})
	checkErr(err)
	log := cfg.Logger(os.Stdout)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if useTC && cfg.Backend == config.BackendNats {
		lt := &loadTesting{ctx: ctx, log: log}
		defer lt.doCleanup()
		cfg.Nats.URL = nats.StartTestServer(lt)
	}

	// === metrics ===

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := promadapter.NewAllMetrics(reg)
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer srv.Close()
		log.Info("serving metrics", slog.String("addr", cfg.MetricsAddr))
	}

	// === wire ===

	raw, closeStore, err := backend.Open(ctx, cfg, log)
	checkErr(err)
	defer closeStore()
	store := kv.Instrument(raw, m.Store)
	checkErr(store.Reset(ctx))

	var failures atomic.Int64
	router := chatlog.NewRouter(store, chatlog.Options{
		Logger:      log,
		MailboxSize: cfg.MailboxSize,
		Metrics:     m.Actor,
		OnError:     func(actor.Failure) { failures.Add(1) },
	})
	defer router.Stop()

	client := chatlog.NewClient(router, chatlog.ClientOptions{Logger: log, RequestTimeout: cfg.RequestTimeout})

	fmt.Printf("Backend: %s\n", cfg.Backend)
	fmt.Printf("   Keys: %d, writers/key: %d, appends/writer: %d\n", keys, writers, N)

	// === START ===

	var (
		startAt  = time.Now()
		sent     atomic.Int64
		wg       sync.WaitGroup
		lastTime = time.Now()
		lastMu   sync.Mutex
	)

	for k := range keys {
		key := chatlog.Key(fmt.Sprintf("user-%d", k))
		for w := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sender := fmt.Sprintf("writer-%d", w)
				for i := range N {
					checkErr(client.Append(ctx, key, chatlog.Entry{Sender: sender, Text: fmt.Sprintf("msg %d", i)}))
					if n := sent.Add(1); n%int64(reportStep) == 0 {
						lastMu.Lock()
						now := time.Now()
						took := now.Sub(lastTime)
						lastTime = now
						lastMu.Unlock()
						mu := getMemUsage()
						fmt.Printf(" | %8d sent | %6d ms | %7d appends/s | (%d / %d) MiB mem (sys) |\n", n, took.Milliseconds(), int(float64(reportStep)/took.Seconds()), mu.Alloc/1024/1024, mu.Sys/1024/1024)
					}
				}
			}()
		}
	}
	wg.Wait()
	enqueuedAt := time.Now()

	// === verify ===

	// a read is queued behind every append for its key
	want := writers * N
	var bad int
	for k := range keys {
		key := chatlog.Key(fmt.Sprintf("user-%d", k))
		cl, err := client.ReadLog(ctx, key)
		checkErr(err)
		if cl.Len() != want {
			bad++
			log.Error("count mismatch", slog.String("key", string(key)), slog.Int("want", want), slog.Int("got", cl.Len()))
		}
		checkOrder(cl)
	}

	took := time.Since(startAt)
	runtime.GC()

	total := keys * writers * N
	fmt.Println("==========================================")
	fmt.Printf("  total runtime: %.3f seconds\n", took.Seconds())
	fmt.Printf("  enqueue phase: %.3f seconds\n", enqueuedAt.Sub(startAt).Seconds())
	fmt.Printf("  total appends: %d\n", total)
	fmt.Printf(" avg. appends/s: %d\n", int(float64(total)/took.Seconds()))
	fmt.Printf("    live actors: %d\n", router.Len())
	fmt.Printf("       failures: %d\n", failures.Load())
	fmt.Printf("  bad key count: %d\n", bad)

	if holdOpen && cfg.MetricsAddr != "" {
		fmt.Println("holding for metrics scrape, ctrl-c to quit")
		<-ctx.Done()
	}
	return exitCode(bad, failures.Load())
}

func exitCode(badKeys int, failures int64) int {
	if badKeys > 0 || failures > 0 {
		return 1
	}
	return 0
}

// checkOrder panics unless every writer's messages appear in send order.
func checkOrder(cl *chatlog.ChatLog) {
	next := map[string]int{}
	for _, e := range cl.Entries {
		want := fmt.Sprintf("msg %d", next[e.Sender])
		if e.Text != want {
			panic(fmt.Sprintf("%s: %s out of order, want %q got %q", cl.Key, e.Sender, want, e.Text))
		}
		next[e.Sender]++
	}
}

// === stats helpers ===

type MemUsage struct {
	Alloc      uint64 // bytes allocated and not yet freed (heap)
	TotalAlloc uint64 // cumulative bytes allocated
	Sys        uint64 // total bytes obtained from OS
	NumGC      uint32 // gc cycles
}

func getMemUsage() MemUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemUsage{
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

// === Helpers ===

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}

// === Testing Helper ===

// loadTesting satisfies nats.Testing outside of go test.
type loadTesting struct {
	ctx      context.Context
	log      *slog.Logger
	cleanups []func()
}

func (l *loadTesting) Errorf(format string, args ...any) {
	l.log.Error("LOADTEST :: " + fmt.Sprintf(format, args...))
	l.FailNow()
}
func (l *loadTesting) FailNow()                 { panic("loadtest setup failed") }
func (l *loadTesting) Context() context.Context { return l.ctx }
func (l *loadTesting) Logf(format string, args ...any) {
	l.log.Info("LOADTEST :: " + fmt.Sprintf(format, args...))
}
func (l *loadTesting) Cleanup(f func()) { l.cleanups = append(l.cleanups, f) }

func (l *loadTesting) doCleanup() {
	for i := len(l.cleanups) - 1; i >= 0; i-- {
		l.cleanups[i]()
	}
}
