package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/signalworks/ccdumper/analysis"
	"github.com/signalworks/ccdumper/domain"
	"github.com/signalworks/ccdumper/rpc"
)

type AnalysisHandler struct {
	rpc *rpc.Client
}

func NewAnalysisHandler(client *rpc.Client) *AnalysisHandler {
	return &AnalysisHandler{rpc: client}
}

// GetAnalysis serves GET /api/analysis/{role}?symbol=BTCUSDT by asking
// the worker owning the role for a fresh result.
func (h *AnalysisHandler) GetAnalysis(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	role, err := domain.ParseRole(mux.Vars(req)["role"])
	if err != nil {
		http.Error(res, err.Error(), http.StatusNotFound)
		return
	}

	symbol := req.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(res, "symbol is required", http.StatusBadRequest)
		return
	}

	var result analysis.Result
	if err := h.rpc.Call(ctx, role, analysis.MethodAnalyze, symbol, &result); err != nil {
		log.WithField("role", role).WithField("symbol", symbol).
			Errorf("analysis rpc: %v", err)
		if errors.Is(err, domain.ErrRPCTimeout) || errors.Is(err, domain.ErrPeerUnavailable) {
			http.Error(res, "analysis worker unavailable", http.StatusServiceUnavailable)
			return
		}
		http.Error(res, "analysis failed", http.StatusBadGateway)
		return
	}

	WriteJSON(res, result)
}
