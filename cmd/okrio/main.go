package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/okrio/okrio/pkg/api"
	"github.com/okrio/okrio/pkg/config"
	"github.com/okrio/okrio/pkg/observability"
	"github.com/okrio/okrio/pkg/policy"
	"github.com/okrio/okrio/pkg/store"
	"github.com/okrio/okrio/pkg/workflow"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(strings.ToLower(cfg.Observability.LogLevel.String())); err == nil {
		logger.SetLevel(level)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("Service stopped: %v", err)
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	policyEngine := policy.NewEngine()
	workflowEngine := workflow.NewEngine(policyEngine)

	if cfg.Policy.RolesFile != "" {
		count, err := policy.RegisterRolesFile(policyEngine, cfg.Policy.RolesFile)
		if err != nil {
			return err
		}
		logger.Infof("Loaded %d roles from %s", count, cfg.Policy.RolesFile)

		if cfg.Policy.WatchRoles {
			watcher, err := policy.WatchRolesFile(policyEngine, cfg.Policy.RolesFile, logger)
			if err != nil {
				return err
			}
			defer watcher.Close()
		}
	} else {
		policy.RegisterDefaults(policyEngine)
		logger.Info("Registered the built-in role catalogue")
	}
	if metrics != nil {
		metrics.RolesRegistered.Set(float64(len(policyEngine.DescribeRoles())))
	}

	var db *sql.DB
	var st *store.Store
	if cfg.Database.URL != "" {
		var err error
		db, err = openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		st = store.New(db)
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		if err := replayState(ctx, st, policyEngine, workflowEngine, logger); err != nil {
			return err
		}
		logger.Infof("Connected to %s database", cfg.Database.Driver)
	} else {
		logger.Warn("No database configured, running memory-only")
	}

	if metrics != nil {
		metrics.WorkflowInstances.Set(float64(len(workflowEngine.ListInstances())))
	}

	var evaluator api.Evaluator = policyEngine
	if cfg.Policy.CacheEnabled {
		cache := policy.NewDecisionCache(policyEngine, cfg.Policy.CacheSize, cfg.Policy.CacheTTL)
		if metrics != nil {
			cache.SetObservers(metrics.CacheHitsTotal.Inc, metrics.CacheMissesTotal.Inc)
		}
		evaluator = cache
	}

	var grants api.GrantStore
	var instances api.InstanceStore
	if st != nil {
		grants = st
		instances = st
	}
	server := api.NewServer(
		api.NewPolicyHandlers(policyEngine, evaluator, grants, metrics, logger),
		api.NewWorkflowHandlers(workflowEngine, instances, metrics, logger),
		metrics,
		logger,
	)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	scheduler := cron.New()
	if st != nil && cfg.Workflow.HistoryRetention > 0 {
		_, err := scheduler.AddFunc(cfg.Workflow.RetentionSchedule, func() {
			cutoff := time.Now().Add(-cfg.Workflow.HistoryRetention)
			pruned, err := st.PruneHistory(context.Background(), cutoff)
			if err != nil {
				logger.Errorf("History retention sweep failed: %v", err)
				return
			}
			if pruned > 0 {
				logger.Infof("Pruned %d history entries older than %s", pruned, cutoff.Format(time.RFC3339))
			}
		})
		if err != nil {
			return err
		}
		scheduler.Start()
		logger.Infof("History retention sweep scheduled: %s", cfg.Workflow.RetentionSchedule)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if db != nil && metrics != nil {
		metrics.ObserveDBStats(db.Stats())
		group.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-groupCtx.Done():
					return nil
				case <-ticker.C:
					metrics.ObserveDBStats(db.Stats())
				}
			}
		})
	}
	group.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		<-scheduler.Stop().Done()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// replayState loads persisted assignments, object grants, and workflow
// instances back into the engines after a restart.
func replayState(ctx context.Context, st *store.Store, policyEngine *policy.Engine, workflowEngine *workflow.Engine, logger *logrus.Logger) error {
	assignments, err := st.ListAssignments(ctx)
	if err != nil {
		return err
	}
	for _, assignment := range assignments {
		if err := policyEngine.AssignRole(assignment.UserID, assignment.RoleName); err != nil {
			// A persisted role missing from the catalogue is a config drift,
			// not a fatal error.
			logger.Warnf("Skipping persisted assignment %s->%s: %v", assignment.UserID, assignment.RoleName, err)
		}
	}

	grants, err := st.ListObjectGrants(ctx)
	if err != nil {
		return err
	}
	for _, grant := range grants {
		policyEngine.GrantObjectRole(grant.UserID, grant.ObjectID, grant.Role)
	}

	instances, err := st.ListInstances(ctx)
	if err != nil {
		return err
	}
	for _, instance := range instances {
		workflowEngine.Restore(instance)
	}

	logger.Infof("Replayed %d assignments, %d object grants, %d workflow instances",
		len(assignments), len(grants), len(instances))
	return nil
}
