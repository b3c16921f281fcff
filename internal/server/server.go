// Package server is the HTTP/JSON session adapter: it maps wire requests
// onto exchange operations and exchange results back onto the wire, and
// owns the side effects around each call (trade persistence, Kafka
// publishing, websocket fan-out). It contains no matching or scheduling
// logic; request journaling happens inside the exchange so the journal
// order matches the execution order.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tickex/internal/exchange"
	"tickex/internal/model"
	"tickex/internal/msg"
	"tickex/internal/store"
)

// Server serves the exchange operation set over HTTP/JSON plus a
// websocket trade stream. Store and producer are optional.
type Server struct {
	ex       *exchange.Exchange
	store    *store.Store
	producer *msg.Producer
	logger   *zap.Logger

	tradeHub *hub[model.Trade]
	upgrader websocket.Upgrader
}

// New wires a server around the exchange and its optional collaborators.
func New(ex *exchange.Exchange, st *store.Store, p *msg.Producer, logger *zap.Logger) *Server {
	return &Server{
		ex:       ex,
		store:    st,
		producer: p,
		logger:   logger,
		tradeHub: newHub[model.Trade](),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// Routes returns the HTTP handler for the full operation set.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", s.handleSubmit)
	mux.HandleFunc("POST /orders/{id}/cancel", s.handleCancel)
	mux.HandleFunc("GET /orders/{id}", s.handleOrderStatus)
	mux.HandleFunc("POST /tick", s.handleTick)
	mux.HandleFunc("GET /book/{instrument}", s.handleSnapshot)
	mux.HandleFunc("GET /trades", s.handleTrades)
	mux.HandleFunc("GET /info", s.handleInfo)
	mux.HandleFunc("GET /ws/trades", s.handleTradeStream)
	return mux
}

type orderRequest struct {
	Instrument string `json:"instrument"`
	Side       string `json:"side"`
	Kind       string `json:"kind"`
	Price      int64  `json:"price"`
	Quantity   int64  `json:"quantity"`
}

type orderResponse struct {
	OrderID        uint64        `json:"order_id"`
	Status         string        `json:"status"`
	FilledQuantity int64         `json:"filled_quantity"`
	Tick           uint64        `json:"tick"`
	Trades         []model.Trade `json:"trades"`
}

type cancelResponse struct {
	OrderID   uint64 `json:"order_id"`
	Cancelled bool   `json:"cancelled"`
}

type orderStatusResponse struct {
	OrderID        uint64 `json:"order_id"`
	Instrument     string `json:"instrument"`
	Side           string `json:"side"`
	Kind           string `json:"kind"`
	Price          int64  `json:"price"`
	Quantity       int64  `json:"quantity"`
	FilledQuantity int64  `json:"filled_quantity"`
	Status         string `json:"status"`
	Tick           uint64 `json:"tick"`
}

type tickResponse struct {
	Tick   uint64        `json:"tick"`
	Quotes []model.Quote `json:"quotes"`
	Trades []model.Trade `json:"trades"`
}

type infoResponse struct {
	Version     string   `json:"version"`
	Instruments []string `json:"instruments"`
	Tick        uint64   `json:"tick"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	side, err := parseSide(req.Side)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	ack, err := s.ex.Submit(exchange.SubmitRequest{
		Instrument: req.Instrument,
		Side:       side,
		Kind:       kind,
		Price:      req.Price,
		Quantity:   req.Quantity,
	})
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	s.publishTrades(r.Context(), ack.Trades)
	s.writeJSON(w, http.StatusOK, orderResponse{
		OrderID:        ack.OrderID,
		Status:         ack.Status.String(),
		FilledQuantity: ack.FilledQuantity,
		Tick:           ack.Tick,
		Trades:         ack.Trades,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid order id: %w", err))
		return
	}

	ack, err := s.ex.Cancel(orderID)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, cancelResponse{OrderID: ack.OrderID, Cancelled: ack.Cancelled})
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid order id: %w", err))
		return
	}

	o, err := s.ex.OrderStatus(orderID)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, orderStatusResponse{
		OrderID:        o.ID,
		Instrument:     o.Instrument,
		Side:           o.Side.String(),
		Kind:           o.Kind.String(),
		Price:          o.Price,
		Quantity:       o.Quantity,
		FilledQuantity: o.FilledQuantity,
		Status:         o.Status.String(),
		Tick:           o.Tick,
	})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ex.AdvanceTick()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.publishTrades(r.Context(), summary.Trades)
	if s.producer != nil {
		event := msg.TickEventMsg{
			EventID:   uuid.New().String(),
			Tick:      summary.Tick,
			NumQuotes: len(summary.Quotes),
			NumTrades: len(summary.Trades),
		}
		if err := s.producer.ProduceJSON(r.Context(), msg.TopicTicks, strconv.FormatUint(summary.Tick, 10), event); err != nil {
			s.logger.Warn("failed to publish tick event", zap.Uint64("tick", summary.Tick), zap.Error(err))
		}
	}
	s.writeJSON(w, http.StatusOK, tickResponse{
		Tick:   summary.Tick,
		Quotes: summary.Quotes,
		Trades: summary.Trades,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	depth := 10
	if d := r.URL.Query().Get("depth"); d != "" {
		v, err := strconv.Atoi(d)
		if err != nil || v <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid depth %q", d))
			return
		}
		depth = v
	}

	view, err := s.ex.Snapshot(r.PathValue("instrument"), depth)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var fromSeq uint64
	if f := q.Get("from"); f != "" {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid from sequence %q", f))
			return
		}
		fromSeq = v
	}
	limit := 100
	if l := q.Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", l))
			return
		}
		limit = v
	}

	instrument := q.Get("instrument")
	var trades []model.Trade
	if s.store != nil {
		var err error
		trades, err = s.store.ListTrades(r.Context(), instrument, fromSeq, limit)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
	} else {
		for _, t := range s.ex.Trades(fromSeq, limit) {
			if instrument == "" || t.Instrument == instrument {
				trades = append(trades, t)
			}
		}
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	s.writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, infoResponse{
		Version:     "v1",
		Instruments: s.ex.Instruments(),
		Tick:        s.ex.CurrentTick(),
	})
}

type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.tradeHub.Subscribe(32)
	defer s.tradeHub.Unsubscribe(sub)

	for trade := range sub.ch {
		if err := conn.WriteJSON(outboundMessage{Type: "trade", Data: trade}); err != nil {
			return
		}
	}
}

// publishTrades persists and fans out executions after a core call
// returns. Persistence failures are logged, not surfaced: the ack
// already committed the trades in exchange state.
func (s *Server) publishTrades(ctx context.Context, trades []model.Trade) {
	if len(trades) == 0 {
		return
	}
	if s.store != nil {
		saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := s.store.SaveTrades(saveCtx, trades); err != nil {
			s.logger.Error("failed to persist trades", zap.Int("count", len(trades)), zap.Error(err))
		}
		cancel()
	}
	for _, t := range trades {
		s.tradeHub.Broadcast(t)
		if s.producer != nil {
			event := msg.TradeEventMsg{
				EventID:     uuid.New().String(),
				TradeID:     t.ID,
				Instrument:  t.Instrument,
				BuyOrderID:  t.BuyOrderID,
				SellOrderID: t.SellOrderID,
				Price:       t.Price,
				Quantity:    t.Quantity,
				Sequence:    t.Sequence,
				Tick:        t.Tick,
			}
			if err := s.producer.ProduceJSON(ctx, msg.TopicTrades, t.Instrument, event); err != nil {
				s.logger.Warn("failed to publish trade event", zap.Uint64("trade_id", t.ID), zap.Error(err))
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps core error taxonomy onto HTTP statuses: validation to
// 400, unknown ids/instruments to 404, broken invariants to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrUnknownInstrument), errors.Is(err, model.ErrUnknownOrder):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidPrice), errors.Is(err, model.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInternal):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func parseSide(s string) (model.Side, error) {
	switch s {
	case "BUY":
		return model.Buy, nil
	case "SELL":
		return model.Sell, nil
	default:
		return 0, fmt.Errorf("invalid side %q (want BUY or SELL)", s)
	}
}

func parseKind(s string) (model.OrderKind, error) {
	switch s {
	case "LIMIT":
		return model.Limit, nil
	case "MARKET":
		return model.Market, nil
	default:
		return 0, fmt.Errorf("invalid kind %q (want LIMIT or MARKET)", s)
	}
}
