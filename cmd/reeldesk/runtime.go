package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/evanschultz/reeldesk/internal/adapters/cache/rediscache"
	"github.com/evanschultz/reeldesk/internal/adapters/remote"
	"github.com/evanschultz/reeldesk/internal/adapters/server/common"
	"github.com/evanschultz/reeldesk/internal/adapters/storage/sqlite"
	"github.com/evanschultz/reeldesk/internal/app"
	"github.com/evanschultz/reeldesk/internal/config"
	"github.com/evanschultz/reeldesk/internal/domain"
	"github.com/evanschultz/reeldesk/internal/platform"
)

// errRemoteUnsupported marks commands that need the local database.
var errRemoteUnsupported = errors.New("command requires a local database; unset remote.base_url")

// runEnv is the resolved configuration for one command invocation.
type runEnv struct {
	paths      platform.Paths
	configPath string
	cfg        config.Config
	pipeline   domain.Pipeline
	logger     *runtimeLogger
}

// resolve loads paths, config, and the logger.
func (c *cli) resolve(command string) (*runEnv, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: c.appName,
		DevMode: c.devMode,
	})
	if err != nil {
		return nil, err
	}

	configPath := strings.TrimSpace(c.configPath)
	if configPath == "" {
		configPath = paths.ConfigPath
	}
	dbPath := strings.TrimSpace(c.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		dbPath = paths.DBPath
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	pipeline, err := cfg.Pipeline()
	if err != nil {
		return nil, fmt.Errorf("resolve board pipeline: %w", err)
	}

	logger, err := newRuntimeLogger(c.stderr, c.appName, c.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Info("startup configuration resolved", "app", c.appName, "dev_mode", c.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	return &runEnv{
		paths:      paths,
		configPath: configPath,
		cfg:        cfg,
		pipeline:   pipeline,
		logger:     logger,
	}, nil
}

// close flushes the runtime's log sinks.
func (rt *runEnv) close(stderr io.Writer) {
	if err := rt.logger.Close(); err != nil && rt.logger.shouldLogToSink(rt.logger.consoleSink) {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// sink routes engine notifications into the runtime log.
func (rt *runEnv) sink() app.NotificationSink {
	return app.NotificationSinkFunc(func(kind app.NotificationKind, message string) {
		switch kind {
		case app.NotifyError:
			rt.logger.Error(message)
		case app.NotifyWarning:
			rt.logger.Warn(message)
		default:
			rt.logger.Info(message)
		}
	})
}

func (rt *runEnv) reorderOptions() app.ReorderOptions {
	return app.ReorderOptions{
		MaxConcurrency: rt.cfg.Reorder.MaxConcurrency,
		Transactional:  rt.cfg.Reorder.Transactional,
	}
}

// backend is the wired storage stack behind the CLI, TUI, and server.
type backend struct {
	store app.CollectionStore
	// service and adapter are nil in remote mode.
	service *app.Service
	adapter *common.AppServiceAdapter
	ready   func(context.Context) error
	closers []func() error
}

func (b *backend) close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// local returns the service layer or errRemoteUnsupported.
func (b *backend) local() (*app.Service, *common.AppServiceAdapter, error) {
	if b.service == nil || b.adapter == nil {
		return nil, nil, errRemoteUnsupported
	}
	return b.service, b.adapter, nil
}

// openBackend wires either the remote API client or sqlite plus the optional Redis cache.
func (rt *runEnv) openBackend(ctx context.Context) (*backend, error) {
	logger := rt.logger
	if rt.cfg.UsesRemote() {
		client := remote.New(rt.cfg.Remote.BaseURL)
		if err := client.Validate(); err != nil {
			return nil, err
		}
		logger.Info("using remote collection store", "base_url", client.BaseURL)
		return &backend{store: client}, nil
	}

	b := &backend{}
	logger.Info("opening sqlite repository", "db_path", rt.cfg.Database.Path)
	repo, err := sqlite.Open(rt.cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", rt.cfg.Database.Path, "err", err)
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	b.closers = append(b.closers, repo.Close)
	logger.Info("sqlite repository ready", "db_path", rt.cfg.Database.Path, "migrations", "ensured")

	storeCfg := app.StoreConfig{Pipeline: rt.pipeline}
	if rt.cfg.CacheEnabled() {
		client := redis.NewClient(&redis.Options{
			Addr: rt.cfg.Cache.RedisAddr,
			DB:   rt.cfg.Cache.RedisDB,
		})
		b.closers = append(b.closers, client.Close)
		cache := rediscache.New(client, rt.cfg.CacheTTL())
		if err := cache.Ping(ctx); err != nil {
			logger.Warn("redis cache unreachable; reads fall through to sqlite", "addr", rt.cfg.Cache.RedisAddr, "err", err)
		}
		storeCfg.Cache = cache
		b.ready = cache.Ping
		logger.Info("redis list cache enabled", "addr", rt.cfg.Cache.RedisAddr, "ttl", rt.cfg.CacheTTL())
	}

	store := app.NewStore(repo, storeCfg)
	b.store = store
	b.service = app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		Pipeline:      rt.pipeline,
		PublicBaseURL: rt.cfg.Storage.PublicBaseURL,
		Invalidator:   store,
	})
	b.adapter = common.NewAppServiceAdapter(b.service, store, common.AdapterConfig{
		Sink:    rt.sink(),
		Logger:  logger,
		Reorder: rt.reorderOptions(),
	})
	logger.Debug("application service initialized", "public_base_url", rt.cfg.Storage.PublicBaseURL)
	return b, nil
}

// runtimeLogger fans log events to a styled console sink and an optional dev-file sink.
type runtimeLogger struct {
	sinks          []*charmLog.Logger
	consoleSink    *charmLog.Logger
	consoleEnabled bool
	closeFile      func() error
	devLog         string
}

// newRuntimeLogger configures the console sink and, in dev mode, a logfmt file under the workspace.
func newRuntimeLogger(stderr io.Writer, appName string, devMode bool, cfg config.LoggingConfig, now func() time.Time) (*runtimeLogger, error) {
	rawLevel := strings.TrimSpace(cfg.Level)
	if rawLevel == "" {
		rawLevel = "info"
	}
	level, err := charmLog.ParseLevel(rawLevel)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if now == nil {
		now = time.Now
	}
	if stderr == nil {
		stderr = io.Discard
	}

	consoleLogger := charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	})
	logger := &runtimeLogger{
		sinks:          []*charmLog.Logger{consoleLogger},
		consoleSink:    consoleLogger,
		consoleEnabled: true,
	}
	if !devMode {
		return logger, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working dir: %w", err)
	}
	devLogPath := platform.DevLogPath(workspaceRootFrom(cwd), sanitizeLogFileStem(appName), now().UTC())
	if err := os.MkdirAll(filepath.Dir(devLogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	logFile, err := os.OpenFile(devLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}

	fileLogger := charmLog.NewWithOptions(logFile, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	logger.sinks = append(logger.sinks, fileLogger)
	logger.closeFile = logFile.Close
	logger.devLog = devLogPath
	return logger, nil
}

// DevLogPath returns the active dev log file path.
func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLog
}

// Close closes the optional dev-file sink.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// SetConsoleEnabled toggles whether the console sink receives runtime events.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.consoleEnabled = enabled
}

func (l *runtimeLogger) shouldLogToSink(sink *charmLog.Logger) bool {
	if l == nil || sink == nil {
		return false
	}
	return sink != l.consoleSink || l.consoleEnabled
}

func (l *runtimeLogger) Debug(msg string, keyvals ...any) {
	l.each(func(sink *charmLog.Logger) { sink.Debug(msg, keyvals...) })
}

func (l *runtimeLogger) Info(msg string, keyvals ...any) {
	l.each(func(sink *charmLog.Logger) { sink.Info(msg, keyvals...) })
}

func (l *runtimeLogger) Warn(msg string, keyvals ...any) {
	l.each(func(sink *charmLog.Logger) { sink.Warn(msg, keyvals...) })
}

func (l *runtimeLogger) Error(msg string, keyvals ...any) {
	l.each(func(sink *charmLog.Logger) { sink.Error(msg, keyvals...) })
}

func (l *runtimeLogger) each(fn func(*charmLog.Logger)) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		if l.shouldLogToSink(sink) {
			fn(sink)
		}
	}
}

// workspaceRootFrom walks up to the nearest go.mod or .git directory.
func workspaceRootFrom(start string) string {
	start = filepath.Clean(strings.TrimSpace(start))
	if start == "" {
		return "."
	}
	dir := start
	for {
		if hasWorkspaceMarker(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

func hasWorkspaceMarker(dir string) bool {
	for _, marker := range []string{"go.mod", ".git"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// sanitizeLogFileStem normalizes app names into safe file-name segments.
func sanitizeLogFileStem(appName string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")
	stem := strings.Trim(replacer.Replace(strings.TrimSpace(appName)), "-")
	if stem == "" {
		return platform.DefaultAppName
	}
	return stem
}
