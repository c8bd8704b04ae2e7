package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/mselser95/dex-arb/internal/arbitrage"
	"github.com/mselser95/dex-arb/internal/circuitbreaker"
	"github.com/mselser95/dex-arb/internal/engine"
	"github.com/mselser95/dex-arb/internal/format"
	"github.com/mselser95/dex-arb/internal/users"
	"github.com/mselser95/dex-arb/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	headerVenueWarnings = "X-Venue-Warnings"
	headerScanID        = "X-Scan-ID"

	maxBodyBytes = 1 << 20
)

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// OpportunitiesRequest is the POST /opportunities body. Omitted fields take
// the configured defaults.
type OpportunitiesRequest struct {
	InvestmentAmount  *decimal.Decimal `json:"investment_amount"`
	InitialInvestment *decimal.Decimal `json:"initial_investment"` // legacy alias
	Slippage          *decimal.Decimal `json:"slippage"`
	FeePercentage     *decimal.Decimal `json:"fee_percentage"`
	TokenAddress      string           `json:"token_address"`
	Search            string           `json:"search"` // legacy alias
	Venues            []string         `json:"venues"`
	ChainID           string           `json:"chain_id"`
	IncludeTriangular *bool            `json:"include_triangular"`
}

// RegisterRequest is the POST /register body.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse is the POST /register response.
type RegisterResponse struct {
	UID string `json:"uid"`
}

type handlers struct {
	scanner  Scanner
	logs     LogReader
	logLimit int
	users    Registrar
	defaults Defaults
	breakers BreakerReporter
	watcher  SnapshotReader
	logger   *zap.Logger
}

// SnapshotResponse is the GET /watch/{token} response.
type SnapshotResponse struct {
	Token         string               `json:"token_address"`
	ScannedAt     time.Time            `json:"scanned_at"`
	Error         string               `json:"error,omitempty"`
	Warnings      []types.Warning      `json:"warnings"`
	Opportunities []format.Opportunity `json:"opportunities"`
}

// opportunities handles POST /opportunities.
func (h *handlers) opportunities(w http.ResponseWriter, r *http.Request) {
	var body OpportunitiesRequest
	err := decodeBody(r, &body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := h.scanRequest(&body)

	h.logger.Debug("opportunities-request-received",
		zap.String("token", req.TokenAddress),
		zap.String("investment", req.Params.Investment.String()),
		zap.Strings("venues", req.DexIDs))

	result, err := h.scanner.Scan(r.Context(), req)
	if err != nil {
		h.writeScanError(w, err)
		return
	}

	w.Header().Set(headerVenueWarnings, strconv.Itoa(len(result.Warnings)))
	w.Header().Set(headerScanID, result.ScanID)
	writeJSON(w, http.StatusOK, format.Opportunities(result.Opportunities))
}

func (h *handlers) scanRequest(body *OpportunitiesRequest) engine.Request {
	investment := decimal.NewFromFloat(h.defaults.Investment)
	switch {
	case body.InvestmentAmount != nil:
		investment = *body.InvestmentAmount
	case body.InitialInvestment != nil:
		investment = *body.InitialInvestment
	}

	slippage := decimal.NewFromFloat(h.defaults.Slippage)
	if body.Slippage != nil {
		slippage = *body.Slippage
	}

	fee := decimal.NewFromFloat(h.defaults.Fee)
	if body.FeePercentage != nil {
		fee = *body.FeePercentage
	}

	token := strings.TrimSpace(body.TokenAddress)
	if token == "" {
		token = strings.TrimSpace(body.Search)
	}
	if token == "" {
		token = h.defaults.TokenAddress
	}

	triangular := h.defaults.Triangular
	if body.IncludeTriangular != nil {
		triangular = *body.IncludeTriangular
	}

	return engine.Request{
		TokenAddress: token,
		Params: arbitrage.Params{
			Investment: investment,
			Slippage:   slippage,
			Fee:        fee,
		},
		DexIDs:     body.Venues,
		ChainID:    strings.TrimSpace(body.ChainID),
		Triangular: triangular,
	}
}

// writeScanError maps engine errors to responses. Only caller errors carry
// their message; everything else is a generic 500.
func (h *handlers) writeScanError(w http.ResponseWriter, err error) {
	var engineErr *types.EngineError
	errors.As(err, &engineErr)

	switch types.CodeOf(err) {
	case types.CodeInvalidRequest:
		writeError(w, http.StatusBadRequest, engineErr.Message)
	case types.CodeInsufficientQuotes:
		writeError(w, http.StatusUnprocessableEntity, "insufficient quotes: "+engineErr.Message)
	default:
		h.logger.Error("opportunities-request-failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// recentLogs handles GET /logs.
func (h *handlers) recentLogs(w http.ResponseWriter, r *http.Request) {
	limit := h.logLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	entries, err := h.logs.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("fetch-logs-failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error fetching logs")
		return
	}

	messages := make([]string, 0, len(entries))
	for _, entry := range entries {
		messages = append(messages, entry.Message)
	}
	writeJSON(w, http.StatusOK, messages)
}

// register handles POST /register.
func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var body RegisterRequest
	err := decodeBody(r, &body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.Register(r.Context(), body.Email, body.Password)
	if err != nil {
		if users.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("register-failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, RegisterResponse{UID: user.ID})
}

// breakerStatuses handles GET /venues/breakers.
func (h *handlers) breakerStatuses(w http.ResponseWriter, _ *http.Request) {
	statuses := h.breakers.Statuses()
	if statuses == nil {
		statuses = []circuitbreaker.Status{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

// latestSnapshot handles GET /watch/{token}.
func (h *handlers) latestSnapshot(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	snap := h.watcher.Latest(token)
	if snap == nil {
		writeError(w, http.StatusNotFound, "token is not watched or has not been scanned yet")
		return
	}

	resp := SnapshotResponse{
		Token:         snap.Token,
		ScannedAt:     snap.ScannedAt,
		Warnings:      []types.Warning{},
		Opportunities: []format.Opportunity{},
	}
	switch {
	case snap.Err != nil && types.CodeOf(snap.Err) == types.CodeInternalError:
		resp.Error = "internal server error"
	case snap.Err != nil:
		resp.Error = string(types.CodeOf(snap.Err))
	default:
		resp.Warnings = append(resp.Warnings, snap.Result.Warnings...)
		resp.Opportunities = format.Opportunities(snap.Result.Opportunities)
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeBody decodes a JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}

	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
