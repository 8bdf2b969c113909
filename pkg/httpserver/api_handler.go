package httpserver

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/mselser95/polymarket-updown/internal/ledger"
	"github.com/mselser95/polymarket-updown/internal/session"
	"github.com/mselser95/polymarket-updown/pkg/types"
	"go.uber.org/zap"
)

// SessionLister exposes snapshots of the currently open trading sessions.
type SessionLister interface {
	Sessions() []session.Snapshot
}

// APIHandler serves the read-only bet and session endpoints.
type APIHandler struct {
	store      ledger.Store
	sessions   SessionLister
	strategyID string
	logger     *zap.Logger
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(store ledger.Store, sessions SessionLister, strategyID string, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		store:      store,
		sessions:   sessions,
		strategyID: strategyID,
		logger:     logger,
	}
}

// BetResponse is the wire form of a ledger bet.
type BetResponse struct {
	ID           string  `json:"id"`
	MarketID     string  `json:"market_id"`
	MarketSlug   string  `json:"market_slug"`
	Asset        string  `json:"asset"`
	Timeframe    string  `json:"timeframe"`
	Side         string  `json:"side"`
	TrancheIndex int     `json:"tranche_index"`
	Amount       float64 `json:"amount"`
	Price        float64 `json:"price"`
	Shares       float64 `json:"shares"`
	Status       string  `json:"status"`
	Result       string  `json:"result"`
	Payout       float64 `json:"payout"`
	PnL          float64 `json:"pnl"`
	RedeemTxHash string  `json:"redeem_tx_hash,omitempty"`
}

// StatsEntry aggregates settled outcomes for one asset and timeframe.
type StatsEntry struct {
	Asset       string  `json:"asset"`
	Timeframe   string  `json:"timeframe"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Pending     int     `json:"pending"`
	TotalStaked float64 `json:"total_staked"`
	TotalPayout float64 `json:"total_payout"`
	PnL         float64 `json:"pnl"`
}

// StatsResponse is the /api/stats payload.
type StatsResponse struct {
	Entries     []StatsEntry `json:"entries"`
	TotalStaked float64      `json:"total_staked"`
	TotalPayout float64      `json:"total_payout"`
	TotalPnL    float64      `json:"total_pnl"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleBets handles GET /api/bets?status=<status>&market=<id> requests.
func (h *APIHandler) HandleBets(w http.ResponseWriter, r *http.Request) {
	filter := ledger.BetFilter{StrategyID: h.strategyID}

	if status := r.URL.Query().Get("status"); status != "" {
		switch ledger.BetStatus(status) {
		case ledger.StatusPending, ledger.StatusResolved, ledger.StatusRedeemed:
			filter.Status = ledger.BetStatus(status)
		default:
			h.writeError(w, "unknown status: "+status, http.StatusBadRequest)
			return
		}
	}

	filter.MarketID = r.URL.Query().Get("market")

	bets, err := h.store.ListBets(r.Context(), filter)
	if err != nil {
		h.logger.Error("list-bets-failed", zap.Error(err))
		h.writeError(w, "failed to list bets", http.StatusInternalServerError)
		return
	}

	out := make([]BetResponse, 0, len(bets))
	for _, b := range bets {
		out = append(out, BetResponse{
			ID:           b.ID,
			MarketID:     b.MarketID,
			MarketSlug:   b.MarketSlug,
			Asset:        string(b.Asset),
			Timeframe:    string(b.Timeframe),
			Side:         string(b.Side),
			TrancheIndex: b.TrancheIndex,
			Amount:       b.Amount,
			Price:        b.Price,
			Shares:       b.Shares,
			Status:       string(b.Status),
			Result:       string(b.Result),
			Payout:       b.Payout,
			PnL:          b.PnL(),
			RedeemTxHash: b.RedeemTxHash,
		})
	}

	h.writeJSON(w, out)
}

// HandleSessions handles GET /api/sessions requests.
func (h *APIHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	snapshots := h.sessions.Sessions()
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].EndTime.Before(snapshots[j].EndTime)
	})
	h.writeJSON(w, snapshots)
}

// HandleStats handles GET /api/stats requests.
func (h *APIHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	bets, err := h.store.ListBets(r.Context(), ledger.BetFilter{StrategyID: h.strategyID})
	if err != nil {
		h.logger.Error("list-bets-failed", zap.Error(err))
		h.writeError(w, "failed to list bets", http.StatusInternalServerError)
		return
	}

	type key struct {
		asset     types.Asset
		timeframe types.Timeframe
	}
	grouped := make(map[key]*StatsEntry)

	resp := StatsResponse{Entries: []StatsEntry{}}
	for _, b := range bets {
		k := key{asset: b.Asset, timeframe: b.Timeframe}
		entry, ok := grouped[k]
		if !ok {
			entry = &StatsEntry{Asset: string(b.Asset), Timeframe: string(b.Timeframe)}
			grouped[k] = entry
		}

		entry.TotalStaked += b.Amount
		resp.TotalStaked += b.Amount

		switch b.Result {
		case types.ResultWin:
			entry.Wins++
			entry.TotalPayout += b.Payout
			resp.TotalPayout += b.Payout
		case types.ResultLoss:
			entry.Losses++
		default:
			entry.Pending++
		}
	}

	for _, entry := range grouped {
		entry.PnL = entry.TotalPayout - entry.TotalStaked
		resp.Entries = append(resp.Entries, *entry)
	}
	sort.Slice(resp.Entries, func(i, j int) bool {
		if resp.Entries[i].Asset != resp.Entries[j].Asset {
			return resp.Entries[i].Asset < resp.Entries[j].Asset
		}
		return resp.Entries[i].Timeframe < resp.Entries[j].Timeframe
	})
	resp.TotalPnL = resp.TotalPayout - resp.TotalStaked

	h.writeJSON(w, resp)
}

// HandleBudget handles GET /api/budget requests.
func (h *APIHandler) HandleBudget(w http.ResponseWriter, r *http.Request) {
	budget, err := h.store.GetBudget(r.Context(), h.strategyID)
	if err != nil {
		h.logger.Error("get-budget-failed", zap.Error(err))
		h.writeError(w, "failed to load budget", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, budget)
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *APIHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
