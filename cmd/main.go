package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/signalworks/ccdumper/analysis"
	httpapi "github.com/signalworks/ccdumper/api/http"
	"github.com/signalworks/ccdumper/api/http/handler"
	"github.com/signalworks/ccdumper/broadcast"
	"github.com/signalworks/ccdumper/candle"
	"github.com/signalworks/ccdumper/domain"
	"github.com/signalworks/ccdumper/exchange"
	"github.com/signalworks/ccdumper/history"
	"github.com/signalworks/ccdumper/infra"
	"github.com/signalworks/ccdumper/infra/broker"
	"github.com/signalworks/ccdumper/infra/mongo"
	"github.com/signalworks/ccdumper/internal/repository"
	"github.com/signalworks/ccdumper/job"
	"github.com/signalworks/ccdumper/notify"
	"github.com/signalworks/ccdumper/rpc"
)

func main() {
	workerFlag := flag.String("worker", "", "run as the analysis worker for this role")
	configFlag := flag.String("config", "./config/.env", "path to the .env file")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	conf := infra.SetConfig(*configFlag)

	if *workerFlag != "" {
		role, err := domain.ParseRole(*workerFlag)
		if err != nil {
			log.Fatalf("bad --worker value: %v", err)
		}
		runWorker(conf, role)
		return
	}

	runSupervisor(conf)
}

// buildCache wires the store-first candle pipeline. Every process owns its
// own mongo connection and exchange client; they share nothing but the
// database itself.
func buildCache(ctx context.Context, conf infra.Config) (*candle.Cache, *exchange.Client, error) {
	provider := mongo.NewProvider(conf.Mongo)
	collection, err := provider.CandleCollection(ctx)
	if err != nil {
		return nil, nil, err
	}

	exchangeClient := exchange.NewClient(conf.Exchange)
	cache := candle.NewCache(
		repository.NewCandle(collection),
		exchangeClient,
		candle.CacheConfig{
			RetryCount:          conf.CandleCache.RetryCount,
			RetryDelay:          conf.CandleCache.RetryDelay(),
			MinCandlesForMedian: conf.CandleCache.MinCandlesForMedian,
			AnomalyThreshold:    conf.CandleCache.AnomalyThreshold,
		},
	)
	return cache, exchangeClient, nil
}

func runSupervisor(conf infra.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventsBroker := broker.NewInMemory()

	bus := broadcast.NewBus()
	sup := broadcast.NewSupervisor(bus, func(
		role domain.Role,
		onMessage func(from domain.Role, env domain.Envelope),
		onExit func(from domain.Role),
	) (broadcast.Link, error) {
		return broadcast.SpawnWorker(role, onMessage, onExit)
	}, func(err error) {
		infra.DumpFatal(err)
		eventsBroker.Publish(domain.EvTypeShutdown, domain.NewEvent(context.Background(), err))
		// Handlers run on their own goroutines; give them a moment to
		// flush before the process dies.
		time.Sleep(250 * time.Millisecond)
		log.Errorf("fatal: %v", err)
		os.Exit(1)
	})

	if err := sup.Start(domain.Workers); err != nil {
		infra.DumpFatal(err)
		log.Fatalf("can't start workers: %v", err)
	}
	log.WithField("workers", len(domain.Workers)).Info("worker topology is up")

	cache, exchangeClient, err := buildCache(ctx, conf)
	if err != nil {
		sup.Shutdown()
		infra.DumpFatal(err)
		log.Fatalf("can't init candle cache: %v", err)
	}

	ch := broadcast.NewSupervisorChannel(bus, sup)
	rpcClient := rpc.NewClient(ch)

	if conf.Centrifugo.Enabled {
		notifier := notify.NewNotifier(notify.NewCentrifugoPublisher(conf.Centrifugo))
		notifier.Subscribe(eventsBroker)
	}

	provider := mongo.NewProvider(conf.Mongo)
	services := make([]job.Runner, 0, len(history.Terms))
	reporters := make(map[string]handler.Reporter, len(history.Terms)+1)
	reporters[history.HourlyKind] = history.NewHourlyService(exchangeClient)
	for _, term := range history.Terms {
		collection, err := provider.SnapshotCollection(ctx, term.Kind())
		if err != nil {
			sup.Shutdown()
			infra.DumpFatal(err)
			log.Fatalf("can't init %s snapshots: %v", term.Kind(), err)
		}
		svc := history.NewService(
			term,
			rpcClient,
			exchangeClient,
			repository.NewSnapshot(collection),
			eventsBroker,
		)
		services = append(services, svc)
		reporters[term.Kind()] = svc
	}

	group, ctx := errgroup.WithContext(ctx)
	if !conf.Job.Disabled {
		scheduler := job.NewScheduler(conf.Job.Interval(), conf.Job.Symbols(), services...)
		group.Go(func() error {
			scheduler.Run(ctx)
			return nil
		})
	}

	server := httpapi.NewServer(cache, rpcClient, reporters, conf.HTTP)
	server.Start(ctx)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Stop(shutdownCtx)
	sup.Shutdown()
	_ = group.Wait()
}

func runWorker(conf infra.Config, role domain.Role) {
	log.WithField("role", role).Info("worker started")

	parent := broadcast.OpenParentLink()
	if parent == nil {
		log.Fatal("no supervisor pipes on fds 3 and 4, workers are spawned, not run by hand")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, _, err := buildCache(ctx, conf)
	if err != nil {
		infra.DumpFatal(err)
		log.Fatalf("can't init candle cache: %v", err)
	}

	analyzer, err := analysis.NewAnalyzer(role, cache)
	if err != nil {
		infra.DumpFatal(err)
		log.Fatalf("can't init analyzer: %v", err)
	}

	bus := broadcast.NewBus()
	ch := broadcast.NewWorkerChannel(role, bus, parent)

	srv := rpc.NewServer(ch, role)
	analyzer.Register(srv)
	srv.Start(ctx)

	// Blocks until the supervisor closes the pipe. A dead supervisor means
	// this process has nothing left to answer for.
	if err := parent.Run(bus); err != nil {
		log.Infof("supervisor link closed: %v", err)
	}
}
