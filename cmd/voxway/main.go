// Command voxway is the main entry point for the voxway voice conversation
// server.
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
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxway/voxway/internal/config"
	"github.com/voxway/voxway/internal/health"
	"github.com/voxway/voxway/internal/modules"
	"github.com/voxway/voxway/internal/observe"
	"github.com/voxway/voxway/internal/server"
	"github.com/voxway/voxway/pkg/capability"
	asropenai "github.com/voxway/voxway/pkg/capability/asr/openai"
	"github.com/voxway/voxway/pkg/capability/llm/anyllm"
	llmopenai "github.com/voxway/voxway/pkg/capability/llm/openai"
	"github.com/voxway/voxway/pkg/capability/tts/elevenlabs"
	"github.com/voxway/voxway/pkg/capability/vad/energy"
)

// version is set at build time via -ldflags.
var version = "dev"

const defaultListenAddr = ":8080"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envPath := flag.String("env", "", "optional .env file loaded before the config (default: ./.env if present)")
	flag.Parse()

	// ── Environment ───────────────────────────────────────────────────────────
	// Adapter API keys may come from the environment instead of the config
	// file; a local .env keeps them out of both the YAML and the shell history.
	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			fmt.Fprintf(os.Stderr, "voxway: load %q: %v\n", *envPath, err)
			return 1
		}
	} else {
		_ = godotenv.Load()
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxway: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxway: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	levelVar := new(slog.LevelVar)
	levelVar.Set(slogLevel(cfg.Logging.Level))
	logger := newLogger(cfg.Logging.Format, levelVar)
	slog.SetDefault(logger)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}
	slog.Info("voxway starting",
		"version", version,
		"config", *configPath,
		"listen_addr", listenAddr,
		"log_level", cfg.Logging.Level,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	metrics, otelShutdown, err := observe.Setup(ctx, version)
	if err != nil {
		slog.Error("failed to initialise observability", "err", err)
		return 1
	}
	defer func() {
		sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sdCtx); err != nil {
			slog.Warn("observability shutdown error", "err", err)
		}
	}()

	// ── Runtime config store + file watcher ───────────────────────────────────
	store := config.NewStore(cfg)
	watcher, err := config.NewWatcher(*configPath, store,
		config.WithOnChange(func(_, next *config.Config) {
			levelVar.Set(slogLevel(next.Logging.Level))
		}),
	)
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Capability modules ────────────────────────────────────────────────────
	factories := modules.NewFactories()
	registerBuiltinAdapters(factories)

	registry := modules.NewRegistry()
	if err := factories.Build(registry, cfg); err != nil {
		slog.Error("failed to build modules", "err", err)
		return 1
	}
	if err := registry.SetupAll(ctx); err != nil {
		slog.Error("failed to set up modules", "err", err)
		return 1
	}
	defer func() {
		if err := registry.CloseAll(); err != nil {
			slog.Warn("module close error", "err", err)
		}
	}()

	// ── Protocol server ───────────────────────────────────────────────────────
	srv := server.New(registry, store, server.WithMetrics(metrics))

	wsMux := http.NewServeMux()
	wsMux.Handle("/ws", srv)
	wsServer := &http.Server{Addr: listenAddr, Handler: wsMux}

	var adminServer *http.Server
	if cfg.Server.AdminAddr != "" {
		adminMux := http.NewServeMux()
		health.New(srv.SessionCount, health.ModulesChecker(registry)).Register(adminMux)
		adminMux.Handle("GET /metrics", promhttp.Handler())
		adminServer = &http.Server{Addr: cfg.Server.AdminAddr, Handler: adminMux}
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("websocket server listening", "addr", listenAddr, "path", "/ws")
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = wsServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = wsServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	if adminServer != nil {
		g.Go(func() error {
			slog.Info("admin server listening", "addr", adminServer.Addr)
			if err := adminServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")

		sdCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := wsServer.Shutdown(sdCtx); err != nil {
			slog.Warn("websocket server shutdown error", "err", err)
		}
		if adminServer != nil {
			if err := adminServer.Shutdown(sdCtx); err != nil {
				slog.Warn("admin server shutdown error", "err", err)
			}
		}
		srv.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Adapter wiring ────────────────────────────────────────────────────────────

// anyllmBackends are the LLM adapter names routed through any-llm-go. The
// "openai" name uses the native openai-go adapter instead.
var anyllmBackends = []string{
	"anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinAdapters wires all built-in adapter factories into f. Each
// factory reads its adapter-specific parameters from the module's config map;
// API keys fall back to the adapter's usual environment variable when absent.
func registerBuiltinAdapters(f *modules.Factories) {
	// ── ASR ───────────────────────────────────────────────────────────────────
	f.Register(capability.RoleASR, "openai", func(mod config.ModuleConfig, _ *config.Config) (capability.Lifecycle, error) {
		var opts []asropenai.Option
		if model := optString(mod.Config, "model"); model != "" {
			opts = append(opts, asropenai.WithModel(model))
		}
		if lang := optString(mod.Config, "language"); lang != "" {
			opts = append(opts, asropenai.WithLanguage(lang))
		}
		if baseURL := optString(mod.Config, "base_url"); baseURL != "" {
			opts = append(opts, asropenai.WithBaseURL(baseURL))
		}
		return asropenai.New(optKey(mod.Config, "api_key", "OPENAI_API_KEY"), opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	f.Register(capability.RoleLLM, "openai", func(mod config.ModuleConfig, root *config.Config) (capability.Lifecycle, error) {
		opts := []llmopenai.Option{
			llmopenai.WithSystemPrompt(root.Conversation.SystemPrompt),
		}
		if baseURL := optString(mod.Config, "base_url"); baseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(baseURL))
		}
		return llmopenai.New(
			optKey(mod.Config, "api_key", "OPENAI_API_KEY"),
			optString(mod.Config, "model"),
			opts...,
		)
	})

	for _, backend := range anyllmBackends {
		f.Register(capability.RoleLLM, backend, func(mod config.ModuleConfig, root *config.Config) (capability.Lifecycle, error) {
			var backendOpts []anyllmlib.Option
			if apiKey := optString(mod.Config, "api_key"); apiKey != "" {
				backendOpts = append(backendOpts, anyllmlib.WithAPIKey(apiKey))
			}
			if baseURL := optString(mod.Config, "base_url"); baseURL != "" {
				backendOpts = append(backendOpts, anyllmlib.WithBaseURL(baseURL))
			}
			return anyllm.New(backend, optString(mod.Config, "model"),
				anyllm.WithSystemPrompt(root.Conversation.SystemPrompt),
				anyllm.WithBackendOptions(backendOpts...),
			)
		})
	}

	// ── TTS ───────────────────────────────────────────────────────────────────
	f.Register(capability.RoleTTS, "elevenlabs", func(mod config.ModuleConfig, _ *config.Config) (capability.Lifecycle, error) {
		var opts []elevenlabs.Option
		if model := optString(mod.Config, "model"); model != "" {
			opts = append(opts, elevenlabs.WithModel(model))
		}
		if format := optString(mod.Config, "output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		return elevenlabs.New(
			optKey(mod.Config, "api_key", "ELEVENLABS_API_KEY"),
			optString(mod.Config, "voice_id"),
			opts...,
		)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────
	f.Register(capability.RoleVAD, "energy", func(mod config.ModuleConfig, _ *config.Config) (capability.Lifecycle, error) {
		var opts []energy.Option
		if threshold, ok := optFloat(mod.Config, "threshold"); ok {
			opts = append(opts, energy.WithThreshold(threshold))
		}
		return energy.New(opts...), nil
	})
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(format config.LogFormat, level slog.Leveler) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: level}
	if format == config.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a module config map. Returns "" if
// the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optFloat extracts a numeric value from a module config map. YAML decodes
// numbers as either int or float64 depending on their spelling.
func optFloat(opts map[string]any, key string) (float64, bool) {
	if opts == nil {
		return 0, false
	}
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// optKey reads a credential from the config map, falling back to an
// environment variable.
func optKey(opts map[string]any, key, envVar string) string {
	if v := optString(opts, key); v != "" {
		return v
	}
	return os.Getenv(envVar)
}
