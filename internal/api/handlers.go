package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xtradermorph/traders-journal-sub000/internal/database"
	"github.com/xtradermorph/traders-journal-sub000/internal/medal"
	"github.com/xtradermorph/traders-journal-sub000/internal/models"
	"github.com/xtradermorph/traders-journal-sub000/internal/stats"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// writeStoreError maps store errors to HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, database.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "trader not found")
		return
	}
	s.logger.Error(msg, zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, msg)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleClassifyWinRate classifies ?win_rate=NN. A missing or unparsable
// value is treated as absent and classifies as none.
func (s *Server) handleClassifyWinRate(w http.ResponseWriter, r *http.Request) {
	var winRate *float64
	if raw := r.URL.Query().Get("win_rate"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			winRate = &v
		}
	}

	s.writeJSON(w, http.StatusOK, struct {
		WinRate *float64   `json:"win_rate"`
		Tier    medal.Tier `json:"tier"`
	}{
		WinRate: winRate,
		Tier:    medal.TierFromWinRate(winRate),
	})
}

func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, struct {
		MinSampleSize int               `json:"min_sample_size"`
		Tiers         []medal.Threshold `json:"tiers"`
	}{
		MinSampleSize: medal.MinSampleSize,
		Tiers:         medal.Thresholds(),
	})
}

type createTraderRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (s *Server) handleCreateTrader(w http.ResponseWriter, r *http.Request) {
	var req createTraderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		s.writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	trader := &models.Trader{Username: req.Username, Email: strings.TrimSpace(req.Email)}
	if err := s.store.CreateTrader(r.Context(), trader); err != nil {
		s.logger.Warn("Failed to create trader", zap.String("username", req.Username), zap.Error(err))
		s.writeError(w, http.StatusConflict, "could not create trader")
		return
	}

	s.writeJSON(w, http.StatusCreated, trader)
}

func (s *Server) handleListTraders(w http.ResponseWriter, r *http.Request) {
	traders, err := s.store.ListTraders(r.Context())
	if err != nil {
		s.writeStoreError(w, err, "Failed to get traders")
		return
	}
	s.writeJSON(w, http.StatusOK, traders)
}

func (s *Server) handleGetTrader(w http.ResponseWriter, r *http.Request) {
	trader, err := s.store.GetTrader(r.Context(), chi.URLParam(r, "traderID"))
	if err != nil {
		s.writeStoreError(w, err, "Failed to get trader")
		return
	}
	s.writeJSON(w, http.StatusOK, trader)
}

// handleListTrades returns a trader's trades, most recent first.
func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	traderID := chi.URLParam(r, "traderID")
	if _, err := s.store.GetTrader(r.Context(), traderID); err != nil {
		s.writeStoreError(w, err, "Failed to get trades")
		return
	}

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
			return
		}
		since = &t
	}

	trades, err := s.store.TradesForTrader(r.Context(), traderID, since)
	if err != nil {
		s.writeStoreError(w, err, "Failed to get trades")
		return
	}
	s.writeJSON(w, http.StatusOK, trades)
}

type createTradeRequest struct {
	Symbol     string           `json:"symbol"`
	Direction  string           `json:"direction"`
	EntryPrice decimal.Decimal  `json:"entry_price"`
	ExitPrice  decimal.Decimal  `json:"exit_price"`
	Quantity   decimal.Decimal  `json:"quantity"`
	Profit     *decimal.Decimal `json:"profit"`
	TradedAt   *time.Time       `json:"traded_at"`
	Notes      string           `json:"notes"`
}

// toTrade validates the request. When profit is omitted it is derived from
// the prices and quantity.
func (req createTradeRequest) toTrade(traderID string) (*models.Trade, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}

	direction := strings.ToUpper(strings.TrimSpace(req.Direction))
	if direction == "" {
		direction = models.DirectionLong
	}
	if direction != models.DirectionLong && direction != models.DirectionShort {
		return nil, errors.New("direction must be LONG or SHORT")
	}
	if req.Quantity.IsNegative() {
		return nil, errors.New("quantity must not be negative")
	}

	var profit decimal.Decimal
	switch {
	case req.Profit != nil:
		profit = *req.Profit
	case !req.Quantity.IsZero() && !req.EntryPrice.IsZero() && !req.ExitPrice.IsZero():
		profit = req.ExitPrice.Sub(req.EntryPrice).Mul(req.Quantity)
		if direction == models.DirectionShort {
			profit = profit.Neg()
		}
	default:
		return nil, errors.New("profit or entry_price, exit_price and quantity are required")
	}

	trade := &models.Trade{
		TraderID:   traderID,
		Symbol:     symbol,
		Direction:  direction,
		EntryPrice: req.EntryPrice,
		ExitPrice:  req.ExitPrice,
		Quantity:   req.Quantity,
		Profit:     profit,
		Notes:      req.Notes,
	}
	if req.TradedAt != nil {
		trade.TradedAt = *req.TradedAt
	}
	return trade, nil
}

type createTradeResponse struct {
	Trade       *models.Trade   `json:"trade"`
	Medal       *medal.Progress `json:"medal,omitempty"`
	TierChanged bool            `json:"tier_changed"`
}

// handleCreateTrade logs a trade and re-evaluates the trader's medal.
func (s *Server) handleCreateTrade(w http.ResponseWriter, r *http.Request) {
	traderID := chi.URLParam(r, "traderID")

	var req createTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	trade, err := req.toTrade(traderID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.CreateTrade(r.Context(), trade); err != nil {
		s.writeStoreError(w, err, "Failed to save trade")
		return
	}

	resp := createTradeResponse{Trade: trade}
	// The trade is already saved; a failed evaluation only leaves the medal stale.
	if res, err := s.service.Evaluate(r.Context(), traderID); err != nil {
		s.logger.Warn("Medal evaluation after trade failed", zap.String("trader_id", traderID), zap.Error(err))
	} else {
		resp.Medal = &res.Progress
		resp.TierChanged = res.Changed
	}

	s.writeJSON(w, http.StatusCreated, resp)
}

// handleStatistics calculates and returns trading statistics.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	traderID := chi.URLParam(r, "traderID")
	if _, err := s.store.GetTrader(r.Context(), traderID); err != nil {
		s.writeStoreError(w, err, "Failed to calculate statistics")
		return
	}

	trades, err := s.store.TradesForTrader(r.Context(), traderID, nil)
	if err != nil {
		s.writeStoreError(w, err, "Failed to calculate statistics")
		return
	}

	s.writeJSON(w, http.StatusOK, stats.Build(trades, s.now()))
}

// handleMedal evaluates the trader's medal, notifying on a tier change.
func (s *Server) handleMedal(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Evaluate(r.Context(), chi.URLParam(r, "traderID"))
	if err != nil {
		s.writeStoreError(w, err, "Failed to evaluate medal")
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}
