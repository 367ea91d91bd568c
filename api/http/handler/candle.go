package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-http-utils/headers"
	log "github.com/sirupsen/logrus"

	"github.com/signalworks/ccdumper/candle"
	"github.com/signalworks/ccdumper/domain"
)

const (
	defaultInterval = domain.Interval1m
	defaultLimit    = 32
	maxLimit        = 1000
)

type CandleHandler struct {
	cache *candle.Cache
}

func NewCandleHandler(cache *candle.Cache) *CandleHandler {
	return &CandleHandler{cache: cache}
}

// GetCandles serves GET /api/candles?symbol=BTCUSDT&interval=5m&limit=100.
func (h *CandleHandler) GetCandles(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	symbol := req.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(res, "symbol is required", http.StatusBadRequest)
		return
	}

	interval := defaultInterval
	if raw := req.URL.Query().Get("interval"); raw != "" {
		interval = domain.Interval(raw)
	}
	step, err := interval.Duration()
	if err != nil {
		http.Error(res, "unknown interval "+interval.String(), http.StatusBadRequest)
		return
	}

	limit := defaultLimit
	if raw := req.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxLimit {
			http.Error(res, "limit must be in 1..1000", http.StatusBadRequest)
			return
		}
	}

	since := time.Now().Add(-step * time.Duration(limit))

	candles, err := h.cache.GetCandles(ctx, symbol, interval, limit, since)
	if err != nil {
		log.WithField("symbol", symbol).Errorf("get candles: %v", err)
		http.Error(res, "failed to load candles", http.StatusBadGateway)
		return
	}

	WriteJSON(res, candles)
}

// WriteJSON renders v as a JSON body. Encoding failures after the header
// is written can only be logged.
func WriteJSON(res http.ResponseWriter, v interface{}) {
	res.Header().Set(headers.ContentType, "application/json")
	if err := json.NewEncoder(res).Encode(v); err != nil {
		log.Errorf("write response: %v", err)
	}
}
