// Package httpapi is the thin HTTP surface from spec §6: three POST
// endpoints that subscribe a (exchange, market, data-type) tuple and hand
// back the channel name updates will be delivered on, plus a synchronous
// candle snapshot.
//
// Routing and handler shape are grounded on the teacher's internal/api
// router (plain net/http ServeMux) and internal/gateway/handlers.go (decode
// JSON body, delegate, render JSON); every failure path renders the error
// text as the diagnostic body per the subscription route contract.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"marketcore/internal/model"
)

// Core is the manager-side contract the API needs: subscribe a tuple, fetch
// a candle snapshot. *manager.Manager satisfies it.
type Core interface {
	Subscribe(sub model.Subscription) (string, error)
	Snapshot(ctx context.Context, exchange model.Exchange, market model.Market, interval model.Interval) ([]model.Candle, error)
}

// Server serves the subscribe/candle API on its own listener, separate from
// the metrics server and from every connector's I/O loop.
type Server struct {
	core Core
	log  *slog.Logger
	srv  *http.Server
}

// NewServer builds the API server bound to addr.
func NewServer(addr string, core Core, log *slog.Logger) *Server {
	s := &Server{
		core: core,
		log:  log.With(slog.String("component", "httpapi")),
	}
	s.srv = &http.Server{Addr: addr, Handler: s.Router()}
	return s
}

// Router returns the API mux. Exposed so tests can drive handlers through
// httptest without a listener.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/subscribe/market", s.handleSubscribeMarket)
	mux.HandleFunc("/subscribe/indicator", s.handleSubscribeIndicator)
	mux.HandleFunc("/candle", s.handleCandle)
	return mux
}

// Start launches the server in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("api listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("api server error", "error", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

type subscribeMarketRequest struct {
	Exchange  string `json:"exchange"`
	Market    string `json:"market"`
	DataType  string `json:"data_type"`
	Timeframe string `json:"timeframe,omitempty"`
}

type subscribeIndicatorRequest struct {
	Exchange  string `json:"exchange"`
	Market    string `json:"market"`
	Indicator string `json:"indicator"`
	Period    int    `json:"period,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
}

type candleRequest struct {
	Exchange  string `json:"exchange"`
	Market    string `json:"market"`
	Timeframe string `json:"timeframe"`
}

type channelResponse struct {
	Channel string `json:"channel"`
}

// candleRow is one snapshot row in the wire shape from §6: t is millisecond
// open-time aligned to interval_ms.
type candleRow struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

type candleResponse struct {
	Type     string      `json:"type"`
	Response []candleRow `json:"response"`
}

func (s *Server) handleSubscribeMarket(w http.ResponseWriter, r *http.Request) {
	var req subscribeMarketRequest
	if !s.decode(w, r, &req) {
		return
	}

	exchange, err := model.ParseExchange(req.Exchange)
	if err != nil {
		s.fail(w, err)
		return
	}
	dataType := model.DataType(req.DataType)
	if !dataType.IsRawMarket() {
		s.fail(w, model.ErrUnsupportedDataType)
		return
	}

	extras := model.Extras{}
	if dataType == model.DataTypeCandle {
		if _, err := model.ParseInterval(req.Timeframe); err != nil {
			s.fail(w, err)
			return
		}
		extras["timeframe"] = req.Timeframe
	}

	channel, err := s.core.Subscribe(model.Subscription{
		Exchange: exchange,
		Market:   model.Market(req.Market),
		DataType: dataType,
		Extras:   extras,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, channelResponse{Channel: channel})
}

func (s *Server) handleSubscribeIndicator(w http.ResponseWriter, r *http.Request) {
	var req subscribeIndicatorRequest
	if !s.decode(w, r, &req) {
		return
	}

	exchange, err := model.ParseExchange(req.Exchange)
	if err != nil {
		s.fail(w, err)
		return
	}
	dataType := model.DataType(req.Indicator)
	if dataType.IsRawMarket() || dataType == "" {
		s.fail(w, model.ErrUnsupportedIndicator)
		return
	}
	if _, err := model.ParseInterval(req.Timeframe); req.Timeframe != "" && err != nil {
		s.fail(w, err)
		return
	}

	extras := model.Extras{}
	if req.Period > 0 {
		extras["period"] = req.Period
	}
	if req.Timeframe != "" {
		extras["timeframe"] = req.Timeframe
	}

	channel, err := s.core.Subscribe(model.Subscription{
		Exchange: exchange,
		Market:   model.Market(req.Market),
		DataType: dataType,
		Extras:   extras,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, channelResponse{Channel: channel})
}

func (s *Server) handleCandle(w http.ResponseWriter, r *http.Request) {
	var req candleRequest
	if !s.decode(w, r, &req) {
		return
	}

	exchange, err := model.ParseExchange(req.Exchange)
	if err != nil {
		s.fail(w, err)
		return
	}
	interval, err := model.ParseInterval(req.Timeframe)
	if err != nil {
		s.fail(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	candles, err := s.core.Snapshot(ctx, exchange, model.Market(req.Market), interval)
	if err != nil {
		s.fail(w, err)
		return
	}

	rows := make([]candleRow, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, candleRow{T: c.OpenTimeMs, O: c.Open, H: c.High, L: c.Low, C: c.Close, V: c.Volume})
	}
	s.ok(w, candleResponse{Type: "candleSnapshot", Response: rows})
}

// decode rejects non-POST methods and malformed bodies. Returns false when
// the response has already been written.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.fail(w, err)
		return false
	}
	return true
}

func (s *Server) ok(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

// fail renders a 500 whose body is the diagnostic text, per the §6 route
// contract (the caller reads err.Error() verbatim).
func (s *Server) fail(w http.ResponseWriter, err error) {
	s.log.Warn("request failed", "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
