// Package history persists periodic indicator snapshots per term and
// renders their historical reports. Each term owns one snapshot
// collection; the TTL gate keeps the recurring scheduler from writing
// more than one record per window.
package history

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/signalworks/ccdumper/analysis"
	"github.com/signalworks/ccdumper/domain"
	"github.com/signalworks/ccdumper/gate"
	"github.com/signalworks/ccdumper/rpc"
)

// shutdownThreshold widens the report query window so rows written just
// before a long downtime still show up after restart.
const shutdownThreshold = 4 * time.Hour

// Term binds one analysis role to its snapshot cadence.
type Term struct {
	Role domain.Role
	TTL  time.Duration
	Rows int
}

// Kind is the persisted snapshot kind, identical to the role name.
func (t Term) Kind() string {
	return t.Role.String()
}

// Terms lists every role with a persisted history.
var Terms = []Term{
	{Role: domain.RoleMicroTerm, TTL: time.Minute, Rows: 1440},
	{Role: domain.RoleShortTerm, TTL: 5 * time.Minute, Rows: 2016},
	{Role: domain.RoleSwingTerm, TTL: 30 * time.Minute, Rows: 672},
	{Role: domain.RoleLongTerm, TTL: time.Hour, Rows: 720},
}

// SnapshotRepo is the persisted snapshot collection for one kind.
type SnapshotRepo interface {
	Insert(ctx context.Context, s domain.Snapshot) error
	FindLast(ctx context.Context, symbol string) (*domain.Snapshot, error)
	Paginate(
		ctx context.Context,
		symbol string,
		notBefore time.Time,
		limit int,
		offset int,
	) ([]domain.Snapshot, error)
}

// PriceSource provides the reference market price stored with every
// snapshot.
type PriceSource interface {
	MarketPrice(ctx context.Context, symbol string) (float64, error)
}

// Service runs the compute-and-persist cycle for one term.
type Service struct {
	term   Term
	rpc    *rpc.Client
	prices PriceSource
	repo   SnapshotRepo
	gate   *gate.Gate
	events domain.EventsBroker
	now    func() time.Time
}

func NewService(
	term Term,
	rpcClient *rpc.Client,
	prices PriceSource,
	repo SnapshotRepo,
	events domain.EventsBroker,
) *Service {
	s := &Service{
		term:   term,
		rpc:    rpcClient,
		prices: prices,
		repo:   repo,
		events: events,
		now:    time.Now,
	}
	s.gate = gate.New(func(ctx context.Context, symbol string) (time.Time, bool, error) {
		last, err := repo.FindLast(ctx, symbol)
		if err != nil {
			return time.Time{}, false, err
		}
		if last == nil {
			return time.Time{}, false, nil
		}
		return last.Date, true, nil
	})
	return s
}

// Execute runs one TTL-gated snapshot attempt for the symbol.
func (s *Service) Execute(ctx context.Context, symbol string) error {
	return s.gate.Run(ctx, symbol, s.term.TTL, func(ctx context.Context) error {
		return s.snapshot(ctx, symbol)
	})
}

func (s *Service) snapshot(ctx context.Context, symbol string) error {
	var result analysis.Result
	err := s.rpc.Call(ctx, s.term.Role, analysis.MethodAnalyze, symbol, &result)
	if err != nil {
		return errors.Wrapf(err, "can't get %s analysis", s.term.Role)
	}

	price, err := s.prices.MarketPrice(ctx, symbol)
	if err != nil {
		return errors.Wrapf(err, "can't get market price for %s", symbol)
	}

	snap := domain.Snapshot{
		Symbol:         symbol,
		Kind:           s.term.Kind(),
		Indicators:     result.Indicators,
		CurrentPrice:   price,
		ClosePrice:     result.ClosePrice,
		Trend:          result.Trend,
		LookbackPeriod: result.Lookback,
		Date:           s.now(),
	}

	// A malformed snapshot is logged and dropped, never written and never
	// escalated: the next window simply tries again.
	if err := snap.Validate(); err != nil {
		log.WithField("kind", snap.Kind).
			WithField("symbol", symbol).
			Errorf("snapshot failed validation: %v", err)
		return nil
	}

	if err := s.repo.Insert(ctx, snap); err != nil {
		return err
	}

	if s.events != nil {
		s.events.Publish(domain.EvTypeSnapshots, domain.NewEvent(ctx, snap))
	}

	log.WithField("kind", snap.Kind).
		WithField("symbol", symbol).
		Debug("persisted snapshot")
	return nil
}

// Report renders the markdown history table for a symbol, or "" when no
// rows exist yet.
func (s *Service) Report(ctx context.Context, symbol string) (string, error) {
	window := s.term.TTL*time.Duration(s.term.Rows) + shutdownThreshold
	notBefore := s.now().Add(-window)

	rows, err := s.repo.Paginate(ctx, symbol, notBefore, s.term.Rows, 0)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return renderReport(s.term, symbol, rows), nil
}
