package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/dannyswat/vcursor/internal/relay"
	"github.com/dannyswat/vcursor/internal/store"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mainInner() error {
	addrVar := flag.String("addr", envOr("RELAY_ADDR", "localhost:8080"), "the address to listen on")
	dbVar := flag.String("db", envOr("DATABASE_URL", "sqlite:relay.sqlite3"), "snapshot store: a postgres:// url or a sqlite file")
	redisVar := flag.String("redis", os.Getenv("REDIS_ADDR"), "redis address for fan-out between relay instances; empty to disable")
	levelVar := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*levelVar)); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("Opening snapshot store")
	st, err := store.Open(ctx, *dbVar)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := relay.Options{Store: st}
	if *redisVar != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisVar})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("could not connect to redis: %w", err)
		}
		slog.Info("Connected to redis", "addr", *redisVar)
		opts.Redis = rdb
	}
	rl := relay.New(opts)

	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			slog.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})
	r.Methods(http.MethodGet).Path("/docs/{doc}/ws").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rl.ServeWS(w, req, mux.Vars(req)["doc"])
	})
	r.Methods(http.MethodGet).Path("/docs/{doc}/snapshot").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		content, ok, err := rl.Snapshot(req.Context(), mux.Vars(req)["doc"])
		if err != nil {
			slog.Error("failed to load snapshot", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Add("Content-Type", "text/html; charset=utf-8")
		if _, err := io.WriteString(w, content); err != nil {
			slog.Error("failed to write out", "err", err)
		}
	})
	r.Methods(http.MethodPut).Path("/docs/{doc}/snapshot").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := rl.ReplaceSnapshot(req.Context(), mux.Vars(req)["doc"], string(body)); err != nil {
			slog.Error("failed to replace snapshot", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := rl.Run(ctx); err != nil {
			slog.Error("final backup failed", "err", err)
		}
	}()

	httpServer := &http.Server{Addr: *addrVar, Handler: r}

	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("Relay listening", "addr", *addrVar)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen failed", "err", err)
		}
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	slog.Info("Signal caught", "sig", sig)
	cancel()
	_ = httpServer.Close()
	rl.Close()

	wg.Wait()
	return nil
}
