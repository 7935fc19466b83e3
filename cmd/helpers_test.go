package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/voiceiq/viq-cli/client"
	"github.com/voiceiq/viq-cli/config"
	"github.com/voiceiq/viq-cli/credentials"
	"github.com/voiceiq/viq-cli/pkg/logging"
	"github.com/voiceiq/viq-cli/pkg/reports"
)

const (
	testEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testPassword      = "secret"
	testAccessToken   = "opaque-access-token-1234567890"
	lockedReportID    = "locked"
)

// fakeBackend serves the backend endpoints over 25 reports r01..r25.
type fakeBackend struct {
	mu       sync.Mutex
	records  []reports.Record
	uploads  []string
	deleted  []string
	prompts  []string
	authHdrs []string
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{}
	for i := 1; i <= 25; i++ {
		b.records = append(b.records, reports.Record{
			ID:         reports.ID(fmt.Sprintf("r%02d", i)),
			CallDate:   reports.Str(fmt.Sprintf("2024-07-%02d", i)),
			CallerName: reports.Str(fmt.Sprintf("Caller %02d", i)),
			CallType:   reports.Str("in"),
			Status:     reports.Str("completed"),
			Filename:   reports.Str(fmt.Sprintf("call-%02d.mp3", i)),
		})
	}
	return b
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /logs/all", func(w http.ResponseWriter, r *http.Request) {
		b.noteAuth(r)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		b.mu.Lock()
		total := len(b.records)
		end := offset + limit
		if end > total {
			end = total
		}
		var page []reports.Record
		if offset < total {
			page = append(page, b.records[offset:end]...)
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": page, "limit": limit, "offset": offset, "total": total,
		})
	})

	mux.HandleFunc("GET /logs/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.noteAuth(r)
		id := r.PathValue("id")
		rec, ok := b.find(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
			return
		}
		detail := reports.Detail{
			Record:          rec,
			Transcription:   reports.Str("Hello, I have a billing question."),
			CallLog:         reports.Str("Support Agent: How can I help?\nClient: My bill is wrong."),
			ReportGenerated: reports.Str("# Billing call\n## Summary\n- Customer disputes a charge\n- [x] Refund issued"),
			IssueSummary:    reports.Str("Billing dispute"),
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []reports.Detail{detail}})
	})

	mux.HandleFunc("POST /delete_log", func(w http.ResponseWriter, r *http.Request) {
		b.noteAuth(r)
		id := r.URL.Query().Get("id")
		if id == lockedReportID {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "cannot delete"})
			return
		}
		b.mu.Lock()
		b.deleted = append(b.deleted, id)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	})

	mux.HandleFunc("POST /create_log", func(w http.ResponseWriter, r *http.Request) {
		b.noteAuth(r)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if strings.Contains(hdr.Filename, "broken") {
			http.Error(w, "transcription failed", http.StatusInternalServerError)
			return
		}
		b.mu.Lock()
		b.uploads = append(b.uploads, hdr.Filename)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
	})

	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		b.noteAuth(r)
		var req struct {
			UserPrompt string `json:"user_prompt"`
			UUID       string `json:"uuid"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.prompts = append(b.prompts, req.UUID+":"+req.UserPrompt)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"status": "success", "content": "Answer to " + req.UserPrompt})
	})

	mux.HandleFunc("POST /voice_chat", func(w http.ResponseWriter, r *http.Request) {
		b.noteAuth(r)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"user_prompt": "why did they call",
			"content":     "About report " + r.FormValue("uuid"),
		})
	})

	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password != testPassword {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": testAccessToken, "token_type": "bearer"})
	})

	return mux
}

func (b *fakeBackend) noteAuth(r *http.Request) {
	b.mu.Lock()
	b.authHdrs = append(b.authHdrs, r.Header.Get("Authorization"))
	b.mu.Unlock()
}

func (b *fakeBackend) find(id string) (reports.Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.records {
		if string(r.ID) == id {
			return r, true
		}
	}
	return reports.Record{}, false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// testEnv is a Deps wired to a fakeBackend with config and credentials in a
// temp dir.
type testEnv struct {
	deps    *Deps
	cfg     *config.CLIConfig
	backend *fakeBackend
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := newFakeBackend()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("VIQ_CONFIG_DIR", dir)
	t.Setenv(credentials.EncryptionKeyEnvVar, testEncryptionKey)
	t.Setenv(credentials.TokenEnvVar, "")

	cfg := config.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Timeout = 5 * time.Second
	cfg.ExportDir = dir

	deps := &Deps{
		LoadConfig: func() (*config.CLIConfig, error) { return cfg, nil },
		NewClient: func(cfg *config.CLIConfig, opts *client.ClientOptions) (*client.Client, error) {
			opts.Tokens = client.StaticToken("test-token")
			return client.FromConfig(cfg, opts)
		},
		NewStore:     credentials.NewStore,
		NewLogger:    func(*config.CLIConfig) logging.Logger { return logging.NewNopLogger() },
		ReadPassword: func(string) (string, error) { return testPassword, nil },
		In:           strings.NewReader(""),
		Registry:     prometheus.NewRegistry(),
		Now:          time.Now,
	}
	return &testEnv{deps: deps, cfg: cfg, backend: backend, dir: dir}
}

// execute runs cmd with args and returns everything written to stdout and stderr.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	return buf.String(), err
}
