package telemetry

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilerConfig configures continuous profiling with Pyroscope
type ProfilerConfig struct {
	Enabled         bool
	ServerAddress   string
	ApplicationName string
	// ProfileTypes defaults to DefaultProfileTypes when empty
	ProfileTypes []pyroscope.ProfileType
	// MutexProfileFraction and BlockProfileRate apply when mutex or block
	// profiles are requested; zero means 5
	MutexProfileFraction int
	BlockProfileRate     int
}

// DefaultProfileTypes covers CPU, heap and the lock contention seen when
// payments and the sweep serialize on the same loan
var DefaultProfileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
	pyroscope.ProfileMutexDuration,
	pyroscope.ProfileBlockDuration,
}

// ProfilerConfigFrom derives the profiler settings from Config
func ProfilerConfigFrom(cfg Config) ProfilerConfig {
	return ProfilerConfig{
		Enabled:         cfg.ProfilingEnabled,
		ServerAddress:   cfg.ProfilingEndpoint,
		ApplicationName: cfg.ServiceName,
	}
}

// Profiler is a running Pyroscope session, or a no-op when disabled
type Profiler struct {
	profiler *pyroscope.Profiler
	logger   *zap.Logger
	once     sync.Once
}

// NewProfiler starts profiling when cfg.Enabled
func NewProfiler(cfg ProfilerConfig, logger *zap.Logger) (*Profiler, error) {
	p := &Profiler{logger: logger}
	if !cfg.Enabled {
		logger.Info("Continuous profiling disabled")
		return p, nil
	}
	if cfg.ServerAddress == "" {
		return nil, errors.New("profiler server address is required when profiling is enabled")
	}
	if cfg.ApplicationName == "" {
		return nil, errors.New("profiler application name is required when profiling is enabled")
	}

	types := cfg.ProfileTypes
	if len(types) == 0 {
		types = DefaultProfileTypes
	}
	configureRuntimeProfiling(types, cfg.MutexProfileFraction, cfg.BlockProfileRate)

	tags := map[string]string{}
	if hostname, err := os.Hostname(); err == nil {
		tags["hostname"] = hostname
	}
	if pod := os.Getenv("POD_NAME"); pod != "" {
		tags["pod"] = pod
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Logger:          logger.Named("pyroscope").Sugar(),
		Tags:            tags,
		ProfileTypes:    types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	p.profiler = profiler
	logger.Info("Continuous profiling enabled",
		zap.String("server_address", cfg.ServerAddress),
		zap.Int("profile_types", len(types)),
	)
	return p, nil
}

func configureRuntimeProfiling(types []pyroscope.ProfileType, mutexFraction, blockRate int) {
	for _, t := range types {
		switch t {
		case pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration:
			if mutexFraction <= 0 {
				mutexFraction = 5
			}
			runtime.SetMutexProfileFraction(mutexFraction)
		case pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration:
			if blockRate <= 0 {
				blockRate = 5
			}
			runtime.SetBlockProfileRate(blockRate)
		}
	}
}

// IsEnabled reports whether profiles are being pushed
func (p *Profiler) IsEnabled() bool {
	return p.profiler != nil
}

// Stop flushes the last profiles and stops the session. Later calls are no-ops.
func (p *Profiler) Stop() error {
	var err error
	p.once.Do(func() {
		if p.profiler == nil {
			return
		}
		if err = p.profiler.Stop(); err != nil {
			p.logger.Error("Failed to stop profiler", zap.Error(err))
			err = fmt.Errorf("failed to stop profiler: %w", err)
		}
	})
	return err
}
