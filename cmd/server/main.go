package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	actorhandler "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/actor/handler"
	actorservice "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/actor/service"
	attributionmetrics "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/metrics"
	attributionservice "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/attribution/service"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/clients/compliance"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/clients/identity"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/clients/wallet"
	fraudhandler "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/handler"
	fraudmetrics "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/metrics"
	fraudservice "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/fraud/service"
	ingestconsumer "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/ingest/consumer"
	ingesthandler "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/ingest/handler"
	ingestservice "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/ingest/service"
	payouthandler "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/handler"
	payoutmetrics "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/metrics"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/ports"
	payoutservice "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/payout/service"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/config"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/httpserver"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/kafka"
	kafkaconsumer "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/kafka/consumer"
	kafkaproducer "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/kafka/producer"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/lock"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/logger"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/metrics"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/postgres"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/ratelimit"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/redis"
	riskhandler "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/handler"
	riskmetrics "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/metrics"
	riskservice "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/risk/service"
	httptransport "github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/transport/http"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/worker"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit/publisher"
	auditworker "github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/platform/audit/worker"
)

// main wires stores, services, transports and the periodic sweeps. Every
// external dependency is optional: without Postgres the stores run in
// memory, without Redis locks are in-process, without Kafka the raw event
// consumer and the outbox relay stay off, and without client URLs the wallet,
// compliance and identity services are faked.
func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Server.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
	}
	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	st := newStores(db)
	m := metrics.New()
	reg := m.Registerer()

	auditor := publisher.NewPublisher(st.audit, publisher.WithLogger(log))
	defer auditor.Close()

	var locker lock.Locker = lock.NewSharded(0)
	var limiter ratelimit.Store = ratelimit.NewInMemory()
	if rdb != nil {
		locker = lock.NewRedis(rdb.Client, lock.WithTTL(cfg.Redis.LockTTL), lock.WithLogger(log))
		limiter = ratelimit.NewRedis(rdb.Client)
	}

	walletClient, complianceClient, identityClient, err := newClients(cfg.Clients, log)
	if err != nil {
		return err
	}

	actors, err := actorservice.New(st.actors,
		actorservice.WithLogger(log),
		actorservice.WithAuditPublisher(auditor),
	)
	if err != nil {
		return err
	}
	ledger, err := attributionservice.New(st.records,
		attributionservice.WithLogger(log),
		attributionservice.WithAuditPublisher(auditor),
		attributionservice.WithMetrics(attributionmetrics.New(reg)),
	)
	if err != nil {
		return err
	}
	engine, err := riskservice.New(st.risk, st.signals, ledger,
		riskservice.WithLogger(log),
		riskservice.WithAuditPublisher(auditor),
		riskservice.WithMetrics(riskmetrics.New(reg)),
		riskservice.WithLocker(locker),
		riskservice.WithLockTimeout(cfg.Risk.LockTimeout),
	)
	if err != nil {
		return err
	}

	fraudOpts, err := fraudservice.OptionsFromConfig(cfg.Detectors)
	if err != nil {
		return err
	}
	fraudOpts = append(fraudOpts,
		fraudservice.WithLogger(log),
		fraudservice.WithAuditPublisher(auditor),
		fraudservice.WithMetrics(fraudmetrics.New(reg)),
	)
	fraud, err := fraudservice.New(st.signals, ledger, actors, engine, fraudOpts...)
	if err != nil {
		return err
	}

	rates, err := payoutservice.RatesFromConfig(cfg.Payout)
	if err != nil {
		return err
	}
	calc, err := payoutservice.NewCalculator(ledger, actors, engine, st.payouts, rates)
	if err != nil {
		return err
	}
	settlement, breaker := payoutservice.SettlementFromConfig(cfg.Settlement)
	gate, err := payoutservice.New(st.payouts, calc, engine, complianceClient, walletClient,
		payoutservice.WithLogger(log),
		payoutservice.WithAuditPublisher(auditor),
		payoutservice.WithMetrics(payoutmetrics.New(reg)),
		payoutservice.WithLocker(locker),
		payoutservice.WithTxRunner(st.runner),
		payoutservice.WithBreaker(breaker),
		payoutservice.WithSettlement(settlement),
	)
	if err != nil {
		return err
	}
	engine.BindPayouts(gate)

	ingest, err := ingestservice.New(ledger, actors,
		ingestservice.WithLogger(log),
		ingestservice.WithIdentity(identityClient),
	)
	if err != nil {
		return err
	}

	checks := map[string]httptransport.HealthCheck{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if rdb != nil {
		checks["redis"] = rdb.Health
	}
	router := httptransport.NewRouter(httptransport.Config{
		AdminSecret: []byte(cfg.Server.AdminJWTSecret),
		Logger:      log,
		Metrics:     m,
		Checks:      checks,
	}, httptransport.Routes{
		Public: []httptransport.Registrar{
			ingesthandler.New(ingest, log, ratelimit.Guard(limiter, cfg.RateLimit.PerIP, cfg.RateLimit.Window, log)),
		},
		Admin: []httptransport.Registrar{
			fraudhandler.New(fraud, log),
			riskhandler.New(engine, log),
			actorhandler.New(actors, log),
		},
		Mixed: []interface {
			httptransport.Registrar
			httptransport.AdminRegistrar
		}{
			payouthandler.New(calc, gate, log),
		},
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	jobs := []worker.Job{
		{Name: "fraud-fast-sweep", Interval: cfg.Schedule.FastSweep, Run: func(ctx context.Context) error {
			report, err := fraud.RunFast(ctx)
			log.InfoContext(ctx, "fast sweep finished", "report", report)
			return err
		}},
		{Name: "fraud-ring-sweep", Interval: cfg.Schedule.RingSweep, Run: func(ctx context.Context) error {
			report, err := fraud.RunRing(ctx)
			log.InfoContext(ctx, "ring sweep finished", "report", report)
			return err
		}},
		{Name: "payout-settlement", Interval: cfg.Schedule.SettlementSweep, Run: func(ctx context.Context) error {
			report, err := gate.SweepSettlements(ctx)
			if report.Attempted > 0 || report.CircuitOpened {
				log.InfoContext(ctx, "settlement sweep finished", "report", report)
			}
			return err
		}},
	}

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		if err := kafka.EnsureTopics(ctx, cfg.Kafka.Brokers, cfg.Kafka.Partitions, cfg.Kafka.Replication,
			cfg.Kafka.RawEventsTopic, cfg.Kafka.AuditTopic); err != nil {
			return err
		}
		cons, err := kafkaconsumer.New(kafkaconsumer.Config{
			Brokers: cfg.Kafka.Brokers,
			Group:   cfg.Kafka.ConsumerGroup,
			Topics:  []string{cfg.Kafka.RawEventsTopic},
		}, ingestconsumer.NewHandler(ingest, log), log)
		if err != nil {
			return err
		}
		defer cons.Close()
		g.Go(func() error {
			if err := cons.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})

		if st.outbox != nil {
			prod, err := kafkaproducer.New(cfg.Kafka.Brokers)
			if err != nil {
				return err
			}
			defer prod.Close()
			relay := auditworker.NewRelay(st.outbox, prod, st.runner,
				auditworker.WithTopic(cfg.Kafka.AuditTopic),
				auditworker.WithLogger(log),
			)
			jobs = append(jobs, worker.Job{Name: "audit-outbox-relay", Interval: cfg.Schedule.OutboxRelay, Run: func(ctx context.Context) error {
				_, err := relay.RunOnce(ctx)
				return err
			}})
		}
	}

	scheduler, err := worker.New(jobs,
		worker.WithLogger(log),
		worker.WithLocker(locker),
		worker.WithRegisterer(reg),
	)
	if err != nil {
		return err
	}
	g.Go(func() error {
		if err := scheduler.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.InfoContext(gctx, "starting attribution engine", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newClients(cfg config.Clients, log *slog.Logger) (ports.Wallet, ports.Compliance, ingestservice.Identity, error) {
	var (
		w ports.Wallet           = wallet.NewFake()
		c ports.Compliance       = compliance.NewFake()
		i ingestservice.Identity = identity.Fake{}
	)
	if cfg.WalletURL != "" {
		client, err := wallet.New(cfg.WalletURL, cfg.Timeout)
		if err != nil {
			return nil, nil, nil, err
		}
		w = client
	} else {
		log.Warn("wallet url not configured, settlements are simulated")
	}
	if cfg.ComplianceURL != "" {
		client, err := compliance.New(cfg.ComplianceURL, cfg.Timeout)
		if err != nil {
			return nil, nil, nil, err
		}
		c = client
	}
	if cfg.IdentityURL != "" {
		client, err := identity.New(cfg.IdentityURL, cfg.Timeout)
		if err != nil {
			return nil, nil, nil, err
		}
		i = client
	}
	return w, c, i, nil
}
