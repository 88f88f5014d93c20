package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/query-trigger/internal/analytics"
	"github.com/djlord-it/query-trigger/internal/api"
	"github.com/djlord-it/query-trigger/internal/config"
	"github.com/djlord-it/query-trigger/internal/domain"
	"github.com/djlord-it/query-trigger/internal/invoker"
	"github.com/djlord-it/query-trigger/internal/metrics"
	"github.com/djlord-it/query-trigger/internal/scheduler"
	"github.com/djlord-it/query-trigger/internal/submitter"
	"github.com/djlord-it/query-trigger/internal/transport/channel"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "once":
		os.Exit(runOnce(os.Args[2:]))
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`querytrigger - scheduled trigger adapter for Mozart job submission

Usage:
  querytrigger <command>

Commands:
  serve      Run the trigger endpoint and optional local schedule
  once       Run a single invocation and print the job id
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Once flags:
  -time <rfc3339>   Event timestamp (default: now)
  -event <path>     Read an EventBridge-shaped JSON event from a file, "-" for stdin

Environment Variables:
  MOZART_URL                Job service base URL (required)
  MINUTES                   Query window length in minutes (required)
  JOB_TYPE                  Job type identifier (required)
  JOB_RELEASE               Job type release version (required)
  JOB_QUEUE                 Submission queue name (required)
  ENDPOINT                  Dataset endpoint identifier (required)
  DOWNLOAD_JOB_QUEUE        Queue for scheduled download jobs (required)
  CHUNK_SIZE                Download chunk size (required)
  SMOKE_RUN                 Pass --smoke-run to the job (required boolean)
  DRY_RUN                   Pass --dry-run to the job (required boolean)
  NO_SCHEDULE_DOWNLOAD      Pass --no-schedule-download to the job (required boolean)
  USE_TEMPORAL              Pass --use-temporal to the job (required boolean)

  BOUNDING_BOX                         Spatial bounds passed as --bounds (optional)
  TEMPORAL_START_DATETIME_MARGIN_DAYS  Temporal start margin in days (optional)
  TEMPORAL_START_DATETIME              Literal temporal start fallback (optional)

  HTTP_ADDR                 HTTP server address (default: ":8080")
  SUBMIT_TIMEOUT            Job submission request timeout (default: "30s")
  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")
  TRIGGER_SCHEDULE          Cron expression for the local trigger (optional)
  TRIGGER_TIMEZONE          Timezone for TRIGGER_SCHEDULE (default: "UTC")
  EVENT_BUFFER_SIZE         Trigger event buffer size (default: "16")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")
  REDIS_ADDR                Redis address for analytics (optional)`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(cfg)

	sub := submitter.New(cfg.MozartURL, cfg.SubmitTimeout)

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("querytrigger: metrics enabled (port=%s, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			log.Printf("querytrigger: metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("querytrigger: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("querytrigger: METRICS_ENABLED not set; metrics disabled")
	}

	inv := invoker.New(cfg, sub)
	if metricsSink != nil {
		inv = inv.WithMetrics(metricsSink)
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		inv = inv.WithAnalytics(analytics.NewRedisSink(redisClient))
		log.Printf("querytrigger: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("querytrigger: REDIS_ADDR not set; analytics disabled")
	}

	bus := channel.NewEventBus(cfg.EventBufferSize)

	apiHandler := api.NewHandler(inv).WithHealthChecker(sub)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiHandler,
	}

	go func() {
		log.Printf("querytrigger: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("querytrigger: http server error: %v", err)
		}
	}()

	// Separate contexts for the scheduler and the runner enable ordered
	// shutdown: stop emitting first, then drain.
	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	runnerCtx, cancelRunner := context.WithCancel(context.Background())

	var schedulerWg sync.WaitGroup
	var runnerWg sync.WaitGroup

	if cfg.TriggerSchedule != "" {
		sched, err := scheduler.New(scheduler.Config{
			Expression: cfg.TriggerSchedule,
			Timezone:   cfg.TriggerTimezone,
		}, bus)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to build scheduler: %v\n", err)
			cancelScheduler()
			cancelRunner()
			return exitInvalidConfig
		}
		schedulerWg.Add(1)
		go func() {
			defer schedulerWg.Done()
			sched.Run(schedulerCtx)
		}()
		log.Printf("querytrigger: local schedule enabled (%s %s)", cfg.TriggerSchedule, cfg.TriggerTimezone)
	} else {
		cancelScheduler()
		log.Println("querytrigger: TRIGGER_SCHEDULE not set; triggers arrive via HTTP only")
	}

	runnerWg.Add(1)
	go func() {
		defer runnerWg.Done()
		inv.Run(runnerCtx, bus.Channel())
	}()

	log.Printf("querytrigger: started (window=%dm, queue=%s, http=%s)",
		cfg.WindowMinutes, cfg.JobQueue, cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("querytrigger: received signal %v, shutting down", received)

	// Phase 1: Stop the scheduler (no new locally emitted events)
	if cfg.TriggerSchedule != "" {
		log.Println("querytrigger: stopping scheduler...")
	}
	cancelScheduler()
	schedulerWg.Wait()

	// Phase 2: Stop the HTTP server (no new inbound events)
	log.Println("querytrigger: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("querytrigger: http server shutdown error: %v", err)
	}
	log.Println("querytrigger: http server stopped")

	// Phase 3: Stop the runner (drains buffered events before returning)
	log.Println("querytrigger: stopping runner (draining events)...")
	cancelRunner()
	runnerWg.Wait()
	log.Println("querytrigger: runner stopped")

	// Phase 4: Stop the metrics server if running
	if metricsServer != nil {
		log.Println("querytrigger: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("querytrigger: metrics server shutdown error: %v", err)
		}
		log.Println("querytrigger: metrics server stopped")
	}

	log.Println("querytrigger: stopped")
	return exitSuccess
}

// runOnce performs a single invocation, the way the original Lambda handler
// ran once per delivered event, and prints the job identifier on stdout.
func runOnce(args []string) int {
	fs := flag.NewFlagSet("once", flag.ContinueOnError)
	timeStr := fs.String("time", "", "event timestamp (RFC3339, default now)")
	eventPath := fs.String("event", "", `event JSON file, "-" for stdin`)
	if err := fs.Parse(args); err != nil {
		return exitRuntimeError
	}

	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	event, err := buildEvent(*timeStr, *eventPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitRuntimeError
	}

	inv := invoker.New(cfg, submitter.New(cfg.MozartURL, cfg.SubmitTimeout))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SubmitTimeout+10*time.Second)
	defer cancel()

	jobID, err := inv.Invoke(ctx, event)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invocation failed: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(jobID)
	return exitSuccess
}

func buildEvent(timeStr, eventPath string) (domain.TriggerEvent, error) {
	now := time.Now().UTC()

	if eventPath != "" {
		var data []byte
		var err error
		if eventPath == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(eventPath)
		}
		if err != nil {
			return domain.TriggerEvent{}, fmt.Errorf("read event: %w", err)
		}
		return domain.ParseTriggerEvent(data, now)
	}

	ts := timeStr
	if ts == "" {
		ts = now.Format(time.RFC3339)
	}
	payload := fmt.Sprintf(`{"source":"querytrigger.cli","detail-type":"Manual Invocation","time":%q}`, ts)
	return domain.ParseTriggerEvent([]byte(payload), now)
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("querytrigger version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
