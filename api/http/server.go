package http

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/signalworks/ccdumper/api/http/handler"
	"github.com/signalworks/ccdumper/candle"
	"github.com/signalworks/ccdumper/infra"
	"github.com/signalworks/ccdumper/rpc"
)

type Server struct {
	srv http.Server
}

func NewServer(
	cache *candle.Cache,
	rpcClient *rpc.Client,
	reporters map[string]handler.Reporter,
	conf infra.HTTPConfig,
) *Server {
	candleHandler := handler.NewCandleHandler(cache)
	analysisHandler := handler.NewAnalysisHandler(rpcClient)
	historyHandler := handler.NewHistoryHandler(reporters)

	router := mux.NewRouter()
	router.HandleFunc("/api/candles", candleHandler.GetCandles).Methods(http.MethodGet)
	router.HandleFunc("/api/analysis/{role}", analysisHandler.GetAnalysis).Methods(http.MethodGet)
	router.HandleFunc("/api/history/{kind}", historyHandler.GetReport).Methods(http.MethodGet)
	router.HandleFunc("/health", func(res http.ResponseWriter, _ *http.Request) {
		res.WriteHeader(http.StatusOK)
		_, _ = res.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	return &Server{
		srv: http.Server{
			Addr:    fmt.Sprintf(":%d", conf.Port),
			Handler: router,
		},
	}
}

func (s *Server) Start(ctx context.Context) {
	s.srv.BaseContext = func(listener net.Listener) context.Context {
		return ctx
	}
	go func() {
		log.Infof("http server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server: %v", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Errorf("http shutdown: %v", err)
	}
}
