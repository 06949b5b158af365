package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/velodata/funnelgen/pkg/config"
	"github.com/velodata/funnelgen/pkg/log"
	"github.com/velodata/funnelgen/pkg/metric"
	"github.com/velodata/funnelgen/pkg/pipeline"
	"github.com/velodata/funnelgen/pkg/progress"
	"github.com/velodata/funnelgen/pkg/verify"
	"github.com/velodata/funnelgen/pkg/warehouse"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	var (
		scaleName   = flag.String("scale", "小型企业", "business scale preset")
		stores      = flag.Int("stores", 4, "number of stores")
		days        = flag.Int("days", 365, "time span in days")
		users       = flag.Int("users", 0, "number of users (0 derives from scale)")
		target      = flag.Int("target", 0, "target order count (0 derives from scale)")
		workers     = flag.Int("workers", 0, "worker count (0 uses all CPUs)")
		seed        = flag.Uint64("seed", 42, "random seed")
		parallel    = flag.Bool("parallel", true, "run generation stages in parallel")
		outDir      = flag.String("out", "data/ods", "CSV output directory")
		calibPath   = flag.String("calibration", "", "calibration JSON file (empty uses defaults)")
		dsn         = flag.String("db", "", "MySQL DSN; load tables when set")
		dbMode      = flag.String("db-mode", warehouse.ModeFull, "load mode: full or incremental")
		doVerify    = flag.Bool("verify", false, "verify layer consistency after loading")
		serveAddr   = flag.String("serve", "", "serve status API on this address (e.g. :8080)")
		logLevel    = flag.String("log-level", "info", "log level")
		showVersion = flag.Bool("version", false, "show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("funnelgen v%s (commit: %s)\n", Version, GitCommit)
		os.Exit(0)
	}

	logger := log.NewWithLevel(*logLevel)
	defer logger.Sync()

	if err := run(logger, runConfig{
		scaleName: *scaleName,
		stores:    *stores,
		days:      *days,
		users:     *users,
		target:    *target,
		workers:   *workers,
		seed:      *seed,
		parallel:  *parallel,
		outDir:    *outDir,
		calibPath: *calibPath,
		dsn:       *dsn,
		dbMode:    *dbMode,
		doVerify:  *doVerify,
		serveAddr: *serveAddr,
	}); err != nil {
		logger.Error("run failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

type runConfig struct {
	scaleName string
	stores    int
	days      int
	users     int
	target    int
	workers   int
	seed      uint64
	parallel  bool
	outDir    string
	calibPath string
	dsn       string
	dbMode    string
	doVerify  bool
	serveAddr string
}

func run(logger log.Logger, cfg runConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cal := config.DefaultCalibration()
	if cfg.calibPath != "" {
		loaded, err := config.LoadCalibration(cfg.calibPath)
		if err != nil {
			return err
		}
		cal = loaded
	}
	if err := cal.Validate(); err != nil {
		return fmt.Errorf("calibration: %w", err)
	}

	metrics := metric.NewMetrics()
	hub := progress.NewHub(logger)

	var srv *statusServer
	if cfg.serveAddr != "" {
		srv = newStatusServer(cfg.serveAddr, logger, metrics, hub)
		srv.Start()
		defer srv.Stop()
	}

	p := pipeline.New(pipeline.Options{
		ScaleName:        cfg.scaleName,
		StoreCount:       cfg.stores,
		TimeSpanDays:     cfg.days,
		NumUsers:         cfg.users,
		TargetOrderCount: cfg.target,
		Workers:          cfg.workers,
		Seed:             cfg.seed,
		Parallel:         cfg.parallel,
		Calibration:      cal,
	}, logger, metrics, hub)

	out, err := p.Run(ctx)
	if err != nil {
		return err
	}
	if srv != nil {
		srv.SetOutput(out)
	}

	tables := warehouse.Tables(out, cfg.seed)
	exporter := warehouse.NewExporter(cfg.outDir, logger)
	if err := exporter.Export(tables); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if cfg.dsn != "" {
		db, err := warehouse.Open(cfg.dsn)
		if err != nil {
			return err
		}
		defer db.Close()

		loader := warehouse.NewLoader(db, cfg.dbMode, logger)
		loader.ShowProgress = true
		if err := loader.Load(ctx, tables); err != nil {
			return err
		}

		if cfg.doVerify {
			report, err := verify.New(db, logger).Verify(ctx, out)
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}
			if srv != nil {
				srv.SetReport(report)
			}
			if err := report.WriteText(os.Stdout); err != nil {
				return err
			}
			if !report.Pass {
				return fmt.Errorf("consistency verification failed")
			}
		}
	} else if cfg.doVerify {
		report, err := verify.New(nil, logger).Verify(ctx, out)
		if err != nil {
			return err
		}
		if err := report.WriteText(os.Stdout); err != nil {
			return err
		}
	}

	if srv != nil {
		logger.Info("run finished, status server still up", zap.String("addr", cfg.serveAddr))
		<-ctx.Done()
	}
	return nil
}
