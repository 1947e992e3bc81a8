// Command httpengine is a sample binary wiring config, httpserver, and
// metrics together: it loads an EngineConfig, starts a Server with an echo
// processor as its timeout processor (nothing in this binary calls Checkout,
// so every request is answered by it once max_latency_millis elapses), and
// blocks until SIGINT/SIGTERM/SIGQUIT, the way the
// teacher's httpserver.WaitNotify shuts a server down.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sabouaram/httpengine/config"
	liberr "github.com/sabouaram/httpengine/errors"
	"github.com/sabouaram/httpengine/httpserver"
	"github.com/sabouaram/httpengine/logger"
	"github.com/sabouaram/httpengine/metrics"
	"github.com/sabouaram/httpengine/request"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "httpengine",
	Short: "run the httpengine HTTP/1.1 server",
	Long:  "httpengine runs the reactor-based HTTP/1.1 server engine with an echo request processor.",
	Run:   runServe,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML/JSON/TOML config file (optional)")
}

func echoProcessor(log logger.Logger) httpserver.ProcessorFunc {
	return func(inst *request.Instance) {
		inst.AppendBodyText("echo " + inst.Method() + " " + inst.URL())
		if err := inst.Commit(); err != nil && log != nil {
			log.Warn("commit failed", logger.F("instance_id", inst.ID()), logger.F("error", err.Error()))
		}
	}
}

func runServe(cmd *cobra.Command, args []string) {
	log := logger.New()

	cfg, cfgErr := config.Load(configPath)
	if cfgErr != nil {
		log.Fatal("failed to load configuration", logger.F("error", cfgErr.Error()))
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	s, err := httpserver.New(cfg.Listen, cfg.Port, cfg.ReactorWorkers, cfg.MaxLatencyMillis,
		echoProcessor(log), httpserver.Options{
			Logger:       log,
			Metrics:      collector,
			TimerWorkers: cfg.TimerWorkers,
		})
	if err != nil {
		log.Fatal("failed to start server", logger.F("error", err.Error()))
	}

	log.Info("httpengine listening", logger.F("url", s.URL()))

	if configPath != "" {
		if stop, watchErr := config.Watch(configPath, s, func(e liberr.Error) {
			log.Warn("config reload failed", logger.F("error", e.Error()))
		}); watchErr == nil {
			defer stop()
		}
	}

	if cfg.MetricsListen != "" {
		go serveMetrics(cfg.MetricsListen, reg, log)
	}

	go s.Run(cfg.DebugOut)

	waitNotify(s)
}

func serveMetrics(listen string, reg *prometheus.Registry, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(listen, mux); err != nil {
		log.Warn("metrics listener stopped", logger.F("error", err.Error()))
	}
}

// waitNotify blocks until SIGINT, SIGTERM, or SIGQUIT, then stops s.
func waitNotify(s *httpserver.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	s.Stop()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
