package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/dex-arb/internal/arbitrage"
	"github.com/mselser95/dex-arb/internal/circuitbreaker"
	"github.com/mselser95/dex-arb/internal/engine"
	"github.com/mselser95/dex-arb/internal/format"
	"github.com/mselser95/dex-arb/internal/storage"
	"github.com/mselser95/dex-arb/internal/users"
	"github.com/mselser95/dex-arb/internal/watcher"
	"github.com/mselser95/dex-arb/pkg/healthprobe"
	"github.com/mselser95/dex-arb/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const defaultToken = "7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs"

type fakeScanner struct {
	last   engine.Request
	result *engine.Result
	err    error
}

func (f *fakeScanner) Scan(_ context.Context, req engine.Request) (*engine.Result, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type failingLogs struct{}

func (failingLogs) Recent(context.Context, int) ([]storage.LogEntry, error) {
	return nil, errors.New("connection refused")
}

type failingStore struct{}

func (failingStore) Create(context.Context, *users.Identity) error {
	return errors.New("disk full")
}

func newTestServer(t *testing.T, scanner Scanner, logs LogReader, store users.Store) *Server {
	t.Helper()

	if store == nil {
		store = users.NewMemoryStore()
	}

	return New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
		Scanner:       scanner,
		Logs:          logs,
		LogQueryLimit: 100,
		Users: users.New(&users.Config{
			Store:    store,
			HashCost: bcrypt.MinCost,
			Logger:   zap.NewNop(),
		}),
		Defaults: Defaults{
			Investment:   10000,
			Slippage:     0.0005,
			Fee:          0.0003,
			TokenAddress: defaultToken,
			Triangular:   true,
		},
	})
}

func do(t *testing.T, s *Server, method string, path string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)
	return w
}

func TestNew(t *testing.T) {
	s := newTestServer(t, &fakeScanner{}, storage.NewMemoryLogSink(10, zap.NewNop()), nil)

	if s.server == nil {
		t.Fatal("New() server.server is nil")
	}
	if s.server.Addr != ":0" {
		t.Errorf("Addr = %q, want :0", s.server.Addr)
	}
	if s.healthChecker == nil {
		t.Error("New() healthChecker not set")
	}
}

func TestOpportunities(t *testing.T) {
	opp := arbitrage.CreateTestOpportunity()

	tests := []struct {
		name         string
		body         string
		scanner      *fakeScanner
		wantStatus   int
		wantCount    int
		wantError    string
		wantWarnings string
		check        func(t *testing.T, req engine.Request)
	}{
		{
			name: "defaults-when-body-empty",
			scanner: &fakeScanner{result: &engine.Result{
				ScanID:        "scan-1",
				Opportunities: []*arbitrage.Opportunity{opp},
			}},
			wantStatus:   http.StatusOK,
			wantCount:    1,
			wantWarnings: "0",
			check: func(t *testing.T, req engine.Request) {
				assert.Equal(t, defaultToken, req.TokenAddress)
				assert.Equal(t, "10000", req.Params.Investment.String())
				assert.Equal(t, "0.0005", req.Params.Slippage.String())
				assert.Equal(t, "0.0003", req.Params.Fee.String())
				assert.True(t, req.Triangular)
			},
		},
		{
			name: "caller-values-used-exactly",
			body: `{"investment_amount": 2500, "slippage": "0.01", "fee_percentage": 0.002,
				"token_address": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
				"venues": ["uniswap"], "chain_id": "ethereum", "include_triangular": false}`,
			scanner: &fakeScanner{result: &engine.Result{
				Warnings: []types.Warning{{Venue: "curve:0x1", Code: types.CodeVenueFetchFailure}},
			}},
			wantStatus:   http.StatusOK,
			wantCount:    0,
			wantWarnings: "1",
			check: func(t *testing.T, req engine.Request) {
				assert.Equal(t, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", req.TokenAddress)
				assert.Equal(t, "2500", req.Params.Investment.String())
				assert.Equal(t, "0.01", req.Params.Slippage.String())
				assert.Equal(t, "0.002", req.Params.Fee.String())
				assert.Equal(t, []string{"uniswap"}, req.DexIDs)
				assert.Equal(t, "ethereum", req.ChainID)
				assert.False(t, req.Triangular)
			},
		},
		{
			name:         "legacy-field-names",
			body:         `{"initial_investment": 500, "search": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"}`,
			scanner:      &fakeScanner{result: &engine.Result{}},
			wantStatus:   http.StatusOK,
			wantWarnings: "0",
			check: func(t *testing.T, req engine.Request) {
				assert.Equal(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", req.TokenAddress)
				assert.Equal(t, "500", req.Params.Investment.String())
			},
		},
		{
			name:       "malformed-body",
			body:       `{"investment_amount": `,
			scanner:    &fakeScanner{},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
		{
			name:       "invalid-request",
			body:       `{"investment_amount": -1}`,
			scanner:    &fakeScanner{err: types.NewInvalidRequest("investment_amount must be positive")},
			wantStatus: http.StatusBadRequest,
			wantError:  "investment_amount must be positive",
		},
		{
			name:       "insufficient-quotes",
			scanner:    &fakeScanner{err: types.NewInsufficientQuotes(1)},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "insufficient quotes: need at least 2 usable quotes, got 1",
		},
		{
			name:       "internal-error-hides-cause",
			scanner:    &fakeScanner{err: types.NewInternalError(errors.New("dial tcp 10.0.0.1:443"))},
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.scanner, storage.NewMemoryLogSink(10, zap.NewNop()), nil)

			w := do(t, s, http.MethodPost, "/opportunities", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			if tt.wantError != "" {
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantError, resp.Error)
				return
			}

			assert.Equal(t, tt.wantWarnings, w.Header().Get(headerVenueWarnings))
			assert.True(t, strings.HasPrefix(strings.TrimSpace(w.Body.String()), "["), "response must be an array")

			var resp []format.Opportunity
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Len(t, resp, tt.wantCount)

			if tt.check != nil {
				tt.check(t, tt.scanner.last)
			}
		})
	}
}

func TestOpportunities_ResponseShape(t *testing.T) {
	scanner := &fakeScanner{result: &engine.Result{
		ScanID:        "scan-shape",
		Opportunities: []*arbitrage.Opportunity{arbitrage.CreateTestOpportunity()},
	}}
	s := newTestServer(t, scanner, storage.NewMemoryLogSink(10, zap.NewNop()), nil)

	w := do(t, s, http.MethodPost, "/opportunities", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "scan-shape", w.Header().Get(headerScanID))

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	require.Len(t, raw, 1)

	for _, key := range []string{"pair1", "pair2", "buy_price", "sell_price", "net_spread", "expected_profit", "liquidity_display"} {
		assert.Contains(t, raw[0], key)
	}
	assert.NotContains(t, raw[0], "pair3")
	assert.Equal(t, "A", raw[0]["buy_venue"])
}

func TestRecentLogs(t *testing.T) {
	t.Run("empty-store-returns-empty-array", func(t *testing.T) {
		s := newTestServer(t, &fakeScanner{}, storage.NewMemoryLogSink(10, zap.NewNop()), nil)

		w := do(t, s, http.MethodGet, "/logs", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("newest-first-and-limited", func(t *testing.T) {
		sink := storage.NewMemoryLogSink(10, zap.NewNop())
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, msg := range []string{"first", "second", "third"} {
			require.NoError(t, sink.Append(context.Background(), storage.LogEntry{
				Message:   msg,
				Timestamp: base.Add(time.Duration(i) * time.Second),
			}))
		}
		s := newTestServer(t, &fakeScanner{}, sink, nil)

		w := do(t, s, http.MethodGet, "/logs", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `["third","second","first"]`, w.Body.String())

		w = do(t, s, http.MethodGet, "/logs?limit=2", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `["third","second"]`, w.Body.String())

		w = do(t, s, http.MethodGet, "/logs?limit=zero", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("sink-failure", func(t *testing.T) {
		s := newTestServer(t, &fakeScanner{}, failingLogs{}, nil)

		w := do(t, s, http.MethodGet, "/logs", "")
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"error fetching logs"}`, w.Body.String())
	})
}

func TestRegister(t *testing.T) {
	s := newTestServer(t, &fakeScanner{}, storage.NewMemoryLogSink(10, zap.NewNop()), nil)

	w := do(t, s, http.MethodPost, "/register", `{"email":"trader@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp RegisterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.UID, 36)

	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{
			name:      "duplicate-email",
			body:      `{"email":"trader@example.com","password":"hunter22"}`,
			wantError: users.ErrEmailExists.Error(),
		},
		{
			name:      "invalid-email",
			body:      `{"email":"not-an-email","password":"hunter22"}`,
			wantError: users.ErrInvalidEmail.Error(),
		},
		{
			name:      "short-password",
			body:      `{"email":"other@example.com","password":"abc"}`,
			wantError: users.ErrWeakPassword.Error(),
		},
		{
			name:      "password-too-long",
			body:      `{"email":"long@example.com","password":"` + strings.Repeat("p", 73) + `"}`,
			wantError: users.ErrPasswordTooLong.Error(),
		},
		{
			name:      "malformed-body",
			body:      `not json`,
			wantError: "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/register", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
			assert.Equal(t, tt.wantError, errResp.Error)
		})
	}
}

func TestRegister_StoreFailure(t *testing.T) {
	s := newTestServer(t, &fakeScanner{}, storage.NewMemoryLogSink(10, zap.NewNop()), failingStore{})

	w := do(t, s, http.MethodPost, "/register", `{"email":"trader@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestProbesAndMetrics(t *testing.T) {
	s := newTestServer(t, &fakeScanner{}, storage.NewMemoryLogSink(10, zap.NewNop()), nil)

	tests := []struct {
		path string
		want int
	}{
		{path: "/health", want: http.StatusOK},
		{path: "/ready", want: http.StatusServiceUnavailable},
		{path: "/metrics", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(strings.TrimPrefix(tt.path, "/"), func(t *testing.T) {
			w := do(t, s, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name            string
		origins         []string
		origin          string
		wantHeader      string
		wantCredentials string
	}{
		{
			name:       "reflects-any-origin-by-default",
			origin:     "https://dash.example.com",
			wantHeader: "https://dash.example.com",
		},
		{
			name:       "wildcard-reflects-without-credentials",
			origins:    []string{"*"},
			origin:     "https://dash.example.com",
			wantHeader: "https://dash.example.com",
		},
		{
			name:            "allowed-origin-with-credentials",
			origins:         []string{"https://dash.example.com"},
			origin:          "https://dash.example.com",
			wantHeader:      "https://dash.example.com",
			wantCredentials: "true",
		},
		{
			name:    "rejected-origin",
			origins: []string{"https://dash.example.com"},
			origin:  "https://evil.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := corsMiddleware(tt.origins)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodOptions, "/opportunities", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantHeader, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredentials, w.Header().Get("Access-Control-Allow-Credentials"))
			if tt.wantHeader != "" {
				assert.Equal(t, http.StatusNoContent, w.Code)
			} else {
				assert.Equal(t, http.StatusOK, w.Code)
			}
		})
	}
}

type fakeBreakers []circuitbreaker.Status

func (f fakeBreakers) Statuses() []circuitbreaker.Status { return f }

type fakeSnapshots map[string]*watcher.Snapshot

func (f fakeSnapshots) Latest(token string) *watcher.Snapshot { return f[token] }

func TestBreakerStatuses(t *testing.T) {
	s := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
		Breakers: fakeBreakers{
			{Key: "uniswap:0xa", State: "open", ConsecutiveFailures: 5, TotalFailures: 7},
		},
	})

	w := do(t, s, http.MethodGet, "/venues/breakers", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`[{"key":"uniswap:0xa","state":"open","consecutive_failures":5,"total_failures":7}]`,
		w.Body.String())

	// Routes without a backing component are not mounted.
	w = do(t, s, http.MethodPost, "/opportunities", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLatestSnapshot(t *testing.T) {
	scannedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
		Watcher: fakeSnapshots{
			"weth": {
				Token:     "weth",
				ScannedAt: scannedAt,
				Result: &engine.Result{
					Opportunities: []*arbitrage.Opportunity{arbitrage.CreateTestOpportunity()},
				},
			},
			"dai": {
				Token:     "dai",
				ScannedAt: scannedAt,
				Err:       types.NewInsufficientQuotes(1),
			},
		},
	})

	t.Run("with-opportunities", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/watch/weth", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp SnapshotResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "weth", resp.Token)
		assert.Empty(t, resp.Error)
		assert.Len(t, resp.Opportunities, 1)
		assert.True(t, resp.ScannedAt.Equal(scannedAt))
	})

	t.Run("failed-scan", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/watch/dai", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp SnapshotResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "INSUFFICIENT_QUOTES", resp.Error)
		assert.Empty(t, resp.Opportunities)
	})

	t.Run("unknown-token", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/watch/usdc", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
