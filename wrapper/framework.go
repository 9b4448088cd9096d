package wrapper

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/cryptix-network/cryptix-wallet-go/core"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/pool"
	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
)

var ErrFrameworkNotInitialized = errors.New(
	"cryptix framework not initialized, call InitCryptixFramework first",
)

// WorkerLog is the logger of wallets driven by the framework worker pool.
var WorkerLog = core.Log.WithField("worker", "cryptix-wallet-worker")

type FrameworkConfig struct {
	LogLevel      string        `mapstructure:"log_level"`
	Workers       int           `mapstructure:"workers"`
	WorkerTimeout time.Duration `mapstructure:"worker_timeout"`
	JSONLogs      bool          `mapstructure:"json_logs"`
}

func (c FrameworkConfig) withDefaults() FrameworkConfig {
	if c.LogLevel == "" {
		c.LogLevel = log.InfoLevel.String()
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.WorkerTimeout <= 0 {
		c.WorkerTimeout = pool.DefaultWorkerTimeout
	}
	return c
}

var framework = struct {
	mu     *sync.RWMutex
	worker *pool.Worker
	cfg    FrameworkConfig
}{
	mu: &sync.RWMutex{},
}

// InitCryptixFramework configures the shared logger and starts the worker
// pool wallets run their heavy operations on. Calling it again once
// initialized is a no-op.
func InitCryptixFramework(cfg FrameworkConfig) error {
	framework.mu.Lock()
	defer framework.mu.Unlock()

	if framework.worker != nil {
		return nil
	}

	cfg = cfg.withDefaults()
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger := log.StandardLogger()
	logger.SetLevel(level)
	if cfg.JSONLogs {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	worker := pool.NewWorker(&pool.WorkerConfig{
		NewWorkerState: func() pool.WorkerState { return &workerState{} },
		NumWorkers:     cfg.Workers,
		WorkerTimeout:  cfg.WorkerTimeout,
	})
	if err := worker.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	framework.worker = worker
	framework.cfg = cfg
	WorkerLog.WithFields(log.Fields{
		"workers":        cfg.Workers,
		"worker_timeout": cfg.WorkerTimeout,
		"pid":            os.Getpid(),
	}).Debug("cryptix framework initialized")
	return nil
}

// InitCryptixFrameworkFromMap decodes cfg into a FrameworkConfig, accepting
// durations as strings ("10s"), and initializes the framework with it.
func InitCryptixFrameworkFromMap(cfg map[string]any) error {
	var config FrameworkConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &config,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("invalid framework config: %w", err)
	}
	return InitCryptixFramework(config)
}

// ShutdownCryptixFramework stops the worker pool. Wallets created before
// fail their pooled operations until the framework is initialized again.
func ShutdownCryptixFramework() {
	framework.mu.Lock()
	worker := framework.worker
	framework.worker = nil
	framework.mu.Unlock()

	if worker != nil {
		// nolint
		worker.Stop()
	}
}

func IsInitialized() bool {
	framework.mu.RLock()
	defer framework.mu.RUnlock()
	return framework.worker != nil
}

// runJob executes fn on the worker pool and logs its duration.
func runJob(logger *log.Entry, op string, fn func() error) error {
	framework.mu.RLock()
	worker := framework.worker
	framework.mu.RUnlock()
	if worker == nil {
		return ErrFrameworkNotInitialized
	}

	uid := uuid.NewString()
	jobLog := logger.WithFields(log.Fields{"op": op, "uid": uid})
	jobLog.Trace("job submitted")

	started := time.Now()
	err := worker.Submit(func(state pool.WorkerState) error {
		state.(*workerState).jobs++
		return fn()
	})
	jobLog = jobLog.WithField("took", time.Since(started))
	if err != nil {
		jobLog.WithError(err).Debug("job failed")
		return err
	}
	jobLog.Debug("job done")
	return nil
}

type workerState struct {
	jobs int
}

func (s *workerState) Reset() {}

func (s *workerState) Cleanup() {
	WorkerLog.WithField("jobs", s.jobs).Trace("worker exiting")
}
