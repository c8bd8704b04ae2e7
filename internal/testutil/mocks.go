package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/dex-arb/pkg/types"
)

// MockDexscreenerAPI is a mock HTTP server that simulates the Dexscreener API.
type MockDexscreenerAPI struct {
	*httptest.Server

	mu       sync.RWMutex
	pairs    map[string][]types.DexPair // canonical token -> pools
	failures map[string]int             // pair address -> status code
	delays   map[string]time.Duration   // pair address -> response delay
	payloads map[string][]byte          // pair address -> raw body override

	tokenRequests atomic.Int64
	pairRequests  atomic.Int64
}

// NewMockDexscreenerAPI creates a new mock Dexscreener API server.
func NewMockDexscreenerAPI() *MockDexscreenerAPI {
	mock := &MockDexscreenerAPI{
		pairs:    make(map[string][]types.DexPair),
		failures: make(map[string]int),
		delays:   make(map[string]time.Duration),
		payloads: make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/latest/dex/tokens/", mock.handleTokens)
	mux.HandleFunc("/latest/dex/pairs/", mock.handlePair)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// AddPairs registers pools under every token they contain.
func (m *MockDexscreenerAPI) AddPairs(pairs ...types.DexPair) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range pairs {
		base := types.CanonicalAddress(p.BaseToken.Address)
		quote := types.CanonicalAddress(p.QuoteToken.Address)
		m.pairs[base] = append(m.pairs[base], p)
		if quote != base {
			m.pairs[quote] = append(m.pairs[quote], p)
		}
	}
}

// FailPair makes the pair endpoint answer with status for a pool.
func (m *MockDexscreenerAPI) FailPair(pairAddress string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[pairAddress] = status
}

// DelayPair holds the pair endpoint response for a pool.
func (m *MockDexscreenerAPI) DelayPair(pairAddress string, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[pairAddress] = delay
}

// SetPairPayload replaces the pair endpoint body for a pool.
func (m *MockDexscreenerAPI) SetPairPayload(pairAddress string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[pairAddress] = payload
}

// ClearPair removes any failure, delay or payload override for a pool.
func (m *MockDexscreenerAPI) ClearPair(pairAddress string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, pairAddress)
	delete(m.delays, pairAddress)
	delete(m.payloads, pairAddress)
}

// TokenRequests returns how many token lookups the server answered.
func (m *MockDexscreenerAPI) TokenRequests() int64 {
	return m.tokenRequests.Load()
}

// PairRequests returns how many pair lookups the server received.
func (m *MockDexscreenerAPI) PairRequests() int64 {
	return m.pairRequests.Load()
}

func (m *MockDexscreenerAPI) handleTokens(w http.ResponseWriter, r *http.Request) {
	m.tokenRequests.Add(1)

	token := strings.TrimPrefix(r.URL.Path, "/latest/dex/tokens/")

	m.mu.RLock()
	pairs := m.pairs[types.CanonicalAddress(token)]
	m.mu.RUnlock()

	if pairs == nil {
		pairs = []types.DexPair{}
	}
	writeJSON(w, types.DexPairsResponse{SchemaVersion: "1.0.0", Pairs: pairs})
}

func (m *MockDexscreenerAPI) handlePair(w http.ResponseWriter, r *http.Request) {
	m.pairRequests.Add(1)

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/latest/dex/pairs/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	pairAddress := parts[1]

	m.mu.RLock()
	status, failing := m.failures[pairAddress]
	delay := m.delays[pairAddress]
	payload, overridden := m.payloads[pairAddress]
	pair, found := m.findPair(pairAddress)
	m.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	switch {
	case failing:
		http.Error(w, "mock failure", status)
	case overridden:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
	case found:
		writeJSON(w, types.DexPairsResponse{SchemaVersion: "1.0.0", Pairs: []types.DexPair{pair}})
	default:
		writeJSON(w, types.DexPairsResponse{SchemaVersion: "1.0.0", Pairs: []types.DexPair{}})
	}
}

func (m *MockDexscreenerAPI) findPair(pairAddress string) (types.DexPair, bool) {
	for _, pairs := range m.pairs {
		for _, p := range pairs {
			if p.PairAddress == pairAddress {
				return p, true
			}
		}
	}
	return types.DexPair{}, false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
