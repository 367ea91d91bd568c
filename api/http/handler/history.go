package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-http-utils/headers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// Reporter renders the persisted snapshot history for one symbol.
type Reporter interface {
	Report(ctx context.Context, symbol string) (string, error)
}

type HistoryHandler struct {
	reporters map[string]Reporter
}

// NewHistoryHandler indexes reporters by snapshot kind.
func NewHistoryHandler(reporters map[string]Reporter) *HistoryHandler {
	return &HistoryHandler{reporters: reporters}
}

// GetReport serves GET /api/history/{kind}?symbol=BTCUSDT as a markdown
// document.
func (h *HistoryHandler) GetReport(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	kind := mux.Vars(req)["kind"]
	reporter, ok := h.reporters[kind]
	if !ok {
		http.Error(res, "unknown history kind "+kind, http.StatusNotFound)
		return
	}

	symbol := req.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(res, "symbol is required", http.StatusBadRequest)
		return
	}

	report, err := reporter.Report(ctx, symbol)
	if err != nil {
		log.WithField("kind", kind).WithField("symbol", symbol).
			Errorf("history report: %v", err)
		http.Error(res, "failed to build report", http.StatusInternalServerError)
		return
	}

	res.Header().Set(headers.ContentType, "text/markdown; charset=utf-8")
	_, _ = io.WriteString(res, report)
}
