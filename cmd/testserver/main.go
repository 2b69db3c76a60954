// testserver starts a forge API server against a stub inference upstream
// for E2E testing. Usage: go run ./cmd/testserver
package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/photosnap/forge/internal/api"
	"github.com/photosnap/forge/internal/inference"
	"github.com/photosnap/forge/internal/service"
	"github.com/photosnap/forge/internal/store"
)

// stubUpstream mimics the async-invoke inference API: every submission
// gets a request id, reports RUNNING for a couple of polls, then turns
// COMPLETE with a small inline base64 image.
type stubUpstream struct {
	mu    sync.Mutex
	next  int
	polls map[string]int
}

func (u *stubUpstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.next++
		id := fmt.Sprintf("stub-%d", u.next)
		u.polls[id] = 0
		u.mu.Unlock()
		fmt.Fprintf(w, `{"request_id":%q}`, id)
	})
	mux.HandleFunc("GET /{id}/status", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		u.mu.Lock()
		u.polls[id]++
		n := u.polls[id]
		u.mu.Unlock()
		if n <= 2 {
			fmt.Fprint(w, `{"status":"RUNNING"}`)
			return
		}
		fmt.Fprint(w, `{"status":"COMPLETE"}`)
	})
	mux.HandleFunc("GET /{id}", func(w http.ResponseWriter, r *http.Request) {
		// A 1x1 transparent PNG, base64-encoded.
		fmt.Fprint(w, `{"output":[{"base64":"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="}]}`)
	})
	return mux
}

func main() {
	addr := ":8080"
	if v := os.Getenv("FORGE_LISTEN_ADDR"); v != "" {
		addr = v
	}

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	upstream := httptest.NewServer((&stubUpstream{polls: make(map[string]int)}).handler())
	defer upstream.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	client := inference.NewClient(inference.Config{BaseURL: upstream.URL}, logger)
	svc := service.NewService(db, client, nil, logger, service.Options{
		PollInterval: 200 * time.Millisecond,
		PollTimeout:  30 * time.Second,
	})

	srv := api.NewServer(addr, db, svc, "stub/model", logger)

	logger.Info("testserver: starting", "addr", addr, "upstream", upstream.URL)
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	svc.Wait()
}
