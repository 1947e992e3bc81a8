// Package config loads and validates the engine's tunables: the listen
// address, reactor and timer worker pool sizes, and the ready-pool latency
// bound. It is read with viper (YAML, env, or an explicit file) and
// validated with go-playground/validator struct tags, the way the teacher's
// httpserver config layer is read and validated.
package config

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	liberr "github.com/sabouaram/httpengine/errors"
)

// EngineConfig is the full set of tunables httpserver.New needs to bind and
// run an engine instance.
type EngineConfig struct {
	// Listen is the local address the reactor's acceptor binds to.
	Listen string `mapstructure:"listen" json:"listen" yaml:"listen" validate:"required,hostname|ip"`

	// Port is the TCP port to listen on; zero picks an ephemeral port.
	Port int `mapstructure:"port" json:"port" yaml:"port" validate:"min=0,max=65535"`

	// ReactorWorkers sizes the reactor's poller worker goroutine pool.
	ReactorWorkers int `mapstructure:"reactor_workers" json:"reactor_workers" yaml:"reactor_workers" validate:"min=1"`

	// TimerWorkers sizes the timer queue's worker goroutine pool.
	TimerWorkers int `mapstructure:"timer_workers" json:"timer_workers" yaml:"timer_workers" validate:"min=1"`

	// MaxLatencyMillis bounds how long a parsed request may wait in the
	// ready pool before the timeout processor is invoked in its place.
	// Zero or negative finalizes every request immediately via the
	// timeout processor, bypassing the ready pool entirely.
	MaxLatencyMillis int64 `mapstructure:"max_latency_millis" json:"max_latency_millis" yaml:"max_latency_millis"`

	// DebugOut mirrors the original's DEBUG_OUT environment toggle: when
	// true, Run logs a counters summary roughly every five seconds.
	DebugOut bool `mapstructure:"debug_out" json:"debug_out" yaml:"debug_out"`

	// MetricsListen, if non-empty, is the address a /metrics endpoint is
	// exposed on by cmd/httpengine. Empty disables metrics exposition.
	MetricsListen string `mapstructure:"metrics_listen" json:"metrics_listen" yaml:"metrics_listen"`
}

// Default returns the engine's out-of-the-box tunables.
func Default() EngineConfig {
	return EngineConfig{
		Listen:           "127.0.0.1",
		Port:             0,
		ReactorWorkers:   4,
		TimerWorkers:     5,
		MaxLatencyMillis: 5000,
	}
}

var validate = validator.New()

// Validate applies struct-tag validation to c.
func (c EngineConfig) Validate() liberr.Error {
	if err := validate.Struct(c); err != nil {
		return liberr.ErrConfigInvalid.Error(err)
	}
	return nil
}

// Load reads configuration from path (YAML, JSON, or TOML, inferred from
// its extension), lets environment variables prefixed HTTPENGINE_ override
// it (HTTPENGINE_MAX_LATENCY_MILLIS overrides max_latency_millis, etc.),
// falls back to Default for keys neither sets, then validates the result.
func Load(path string) (EngineConfig, liberr.Error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("HTTPENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return EngineConfig{}, liberr.ErrConfigLoad.Error(err)
		}
	}

	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return EngineConfig{}, liberr.ErrConfigLoad.Error(err)
	}

	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d EngineConfig) {
	v.SetDefault("listen", d.Listen)
	v.SetDefault("port", d.Port)
	v.SetDefault("reactor_workers", d.ReactorWorkers)
	v.SetDefault("timer_workers", d.TimerWorkers)
	v.SetDefault("max_latency_millis", d.MaxLatencyMillis)
	v.SetDefault("debug_out", d.DebugOut)
	v.SetDefault("metrics_listen", d.MetricsListen)
}

// LatencySetter receives hot-reloaded MaxLatencyMillis updates; it is
// satisfied by *httpserver.Server.
type LatencySetter interface {
	SetMaxLatencyMillis(maxLatencyMillis int64)
}

// Watch reloads path on every write event and pushes MaxLatencyMillis
// changes to target, the way the teacher's config layer supports live
// reconfiguration without a full server restart. It returns a stop
// function that closes the underlying watcher; onError, if non-nil, is
// called with any error a reload produces.
func Watch(path string, target LatencySetter, onError func(liberr.Error)) (stop func(), err liberr.Error) {
	watcher, werr := fsnotify.NewWatcher()
	if werr != nil {
		return nil, liberr.ErrConfigLoad.Error(werr)
	}
	if werr := watcher.Add(path); werr != nil {
		_ = watcher.Close()
		return nil, liberr.ErrConfigLoad.Error(werr)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, loadErr := Load(path)
				if loadErr != nil {
					if onError != nil {
						onError(loadErr)
					}
					continue
				}
				target.SetMaxLatencyMillis(cfg.MaxLatencyMillis)
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(liberr.ErrConfigLoad.Error(watchErr))
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
