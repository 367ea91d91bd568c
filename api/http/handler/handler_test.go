package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalworks/ccdumper/analysis"
	"github.com/signalworks/ccdumper/broadcast"
	"github.com/signalworks/ccdumper/candle"
	"github.com/signalworks/ccdumper/domain"
	"github.com/signalworks/ccdumper/rpc"
)

type stubStore struct {
	rows []domain.Candle
	err  error
}

func (s *stubStore) FindRange(
	context.Context, string, domain.Interval, time.Time, int,
) ([]domain.Candle, error) {
	return s.rows, s.err
}

func (s *stubStore) Exists(context.Context, string, domain.Interval, int64) (bool, error) {
	return true, nil
}

func (s *stubStore) Insert(context.Context, domain.Candle) error { return nil }

type stubFetcher struct{}

func (stubFetcher) FetchCandles(
	context.Context, string, domain.Interval, time.Time, int,
) ([]domain.Candle, error) {
	return nil, errors.New("no upstream in tests")
}

func cacheWith(rows []domain.Candle, err error) *candle.Cache {
	return candle.NewCache(&stubStore{rows: rows, err: err}, stubFetcher{}, candle.CacheConfig{
		RetryCount:          1,
		MinCandlesForMedian: 20,
		AnomalyThreshold:    1000,
	})
}

func storedCandles(n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{
			Symbol:    "BTCUSDT",
			Interval:  domain.Interval1m,
			Timestamp: int64(i) * 60_000,
			Open:      100, High: 101, Low: 99, Close: 100, Volume: 1,
		}
	}
	return out
}

func TestCandleEndpoint(t *testing.T) {
	t.Parallel()
	serve := func(cache *candle.Cache, target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		NewCandleHandler(cache).GetCandles(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	t.Run("returns stored candles as json", func(t *testing.T) {
		rec := serve(cacheWith(storedCandles(3), nil), "/api/candles?symbol=BTCUSDT&interval=1m&limit=3")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

		var got []domain.Candle
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got, 3)
	})
	t.Run("missing symbol is a 400", func(t *testing.T) {
		rec := serve(cacheWith(nil, nil), "/api/candles?interval=1m")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("unknown interval is a 400", func(t *testing.T) {
		rec := serve(cacheWith(nil, nil), "/api/candles?symbol=BTCUSDT&interval=7m")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("out-of-range limit is a 400", func(t *testing.T) {
		rec := serve(cacheWith(nil, nil), "/api/candles?symbol=BTCUSDT&limit=5000")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("cache failure is a 502", func(t *testing.T) {
		rec := serve(cacheWith(nil, errors.New("mongo down")), "/api/candles?symbol=BTCUSDT&limit=3")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func analysisRouter(t *testing.T, handler rpc.HandlerFunc) *mux.Router {
	t.Helper()
	ch := broadcast.NewWorkerChannel(domain.RoleNone, broadcast.NewBus(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := rpc.NewServer(ch, domain.RoleMicroTerm)
	srv.Register(analysis.MethodAnalyze, handler)
	srv.Start(ctx)

	router := mux.NewRouter()
	router.HandleFunc("/api/analysis/{role}", NewAnalysisHandler(rpc.NewClient(ch)).GetAnalysis)
	return router
}

func TestAnalysisEndpoint(t *testing.T) {
	t.Parallel()
	t.Run("returns the worker result", func(t *testing.T) {
		router := analysisRouter(t, func(_ context.Context, symbol string) (interface{}, error) {
			return analysis.Result{Symbol: symbol, Trend: "up"}, nil
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(
			http.MethodGet, "/api/analysis/micro_term?symbol=BTCUSDT", nil,
		))

		require.Equal(t, http.StatusOK, rec.Code)
		var got analysis.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "up", got.Trend)
	})
	t.Run("unknown role is a 404", func(t *testing.T) {
		router := analysisRouter(t, func(context.Context, string) (interface{}, error) {
			return nil, nil
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(
			http.MethodGet, "/api/analysis/mega_term?symbol=BTCUSDT", nil,
		))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("missing symbol is a 400", func(t *testing.T) {
		router := analysisRouter(t, func(context.Context, string) (interface{}, error) {
			return nil, nil
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(
			http.MethodGet, "/api/analysis/micro_term", nil,
		))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("handler failure is a 502", func(t *testing.T) {
		router := analysisRouter(t, func(context.Context, string) (interface{}, error) {
			return nil, errors.New("no candles")
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(
			http.MethodGet, "/api/analysis/micro_term?symbol=BTCUSDT", nil,
		))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

type stubReporter struct {
	report string
	err    error
}

func (r stubReporter) Report(context.Context, string) (string, error) {
	return r.report, r.err
}

func TestHistoryEndpoint(t *testing.T) {
	t.Parallel()
	newRouter := func(reporters map[string]Reporter) *mux.Router {
		router := mux.NewRouter()
		router.HandleFunc("/api/history/{kind}", NewHistoryHandler(reporters).GetReport)
		return router
	}

	t.Run("renders the markdown report", func(t *testing.T) {
		router := newRouter(map[string]Reporter{
			"micro_term": stubReporter{report: "# micro_term analysis history for BTCUSDT\n"},
		})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(
			http.MethodGet, "/api/history/micro_term?symbol=BTCUSDT", nil,
		))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
		assert.Contains(t, rec.Body.String(), "micro_term analysis history")
	})
	t.Run("unknown kind is a 404", func(t *testing.T) {
		router := newRouter(map[string]Reporter{})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(
			http.MethodGet, "/api/history/mega_term?symbol=BTCUSDT", nil,
		))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
	t.Run("reporter failure is a 500", func(t *testing.T) {
		router := newRouter(map[string]Reporter{
			"micro_term": stubReporter{err: errors.New("mongo down")},
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(
			http.MethodGet, "/api/history/micro_term?symbol=BTCUSDT", nil,
		))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
