package root

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ffrouin/tux-copilot/pkg/config"
	"github.com/ffrouin/tux-copilot/pkg/environment"
	"github.com/ffrouin/tux-copilot/pkg/model/provider"
	"github.com/ffrouin/tux-copilot/pkg/runtime"
	"github.com/ffrouin/tux-copilot/pkg/sandbox"
	"github.com/ffrouin/tux-copilot/pkg/session"
	"github.com/ffrouin/tux-copilot/pkg/tools"
	"github.com/ffrouin/tux-copilot/pkg/tools/builtin"
)

// chatFlags are shared by the run and exec commands, which differ only in
// how they drive the chat loop.
type chatFlags struct {
	root    *rootFlags
	workdir string
	model   string
	baseURL string
	store   string
}

func (f *chatFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.workdir, "workdir", "w", "", "Host directory mounted at /workdir in the sandbox")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Override the configured model name")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Override the model provider base URL")
	cmd.Flags().StringVar(&f.store, "store", "", "SQLite file for session persistence")
}

func (f *chatFlags) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(ctx, f.root.configPath, environment.NewOSProvider())
	if err != nil {
		return nil, err
	}
	if f.workdir != "" {
		cfg.Sandbox.Workdir = f.workdir
	}
	if f.model != "" {
		cfg.Model.Model = f.model
	}
	if f.baseURL != "" {
		cfg.Model.BaseURL = f.baseURL
	}
	if f.store != "" {
		cfg.Session.Store = f.store
	}
	return cfg, nil
}

// assembly holds everything a chat command needs, wired and started.
type assembly struct {
	cfg     *config.Config
	engine  *sandbox.DockerEngine
	rt      runtime.Runtime
	store   session.Store
	watcher *config.Watcher
}

// newAssembly builds the provider, sandbox engine, toolsets and runtime from
// the effective configuration. Nothing is started yet; call start next.
func newAssembly(ctx context.Context, cfg *config.Config) (*assembly, error) {
	p, err := provider.New(ctx, &cfg.Model, environment.NewOSProvider())
	if err != nil {
		return nil, fmt.Errorf("creating model provider: %w", err)
	}

	engine := sandbox.NewDockerEngine(&cfg.Sandbox)
	toolsets := []tools.ToolSet{
		builtin.NewWorkspaceTool(&cfg.Sandbox, engine),
		builtin.NewExecTool(&cfg.Sandbox, engine),
		builtin.NewClockTool(),
	}

	rt := runtime.New(p,
		runtime.WithToolSets(toolsets...),
		runtime.WithSystemPrompt(cfg.SystemPrompt),
		runtime.WithMaxIterations(cfg.MaxIterations),
		runtime.WithMaxHistory(cfg.MaxHistory),
	)

	var store session.Store
	if cfg.Session.Store != "" {
		s, err := session.NewSQLiteStore(cfg.Session.Store)
		if err != nil {
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		store = s
	}

	return &assembly{cfg: cfg, engine: engine, rt: rt, store: store}, nil
}

// start makes the sandbox image available and starts the toolsets.
func (a *assembly) start(ctx context.Context) error {
	if err := a.engine.EnsureImage(ctx); err != nil {
		return fmt.Errorf("preparing sandbox image: %w", err)
	}
	if err := a.rt.Start(ctx); err != nil {
		return fmt.Errorf("starting toolsets: %w", err)
	}
	return nil
}

// close tears everything down. It deliberately ignores the command context:
// cleanup must run even after Ctrl-C cancelled it.
func (a *assembly) close() {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if err := a.rt.Stop(context.Background()); err != nil {
		slog.Error("stopping toolsets", "error", err)
	}
	if s, ok := a.store.(*session.SQLiteStore); ok {
		_ = s.Close()
	}
}

// watchConfig reloads the model behavior settings whenever the config file
// changes. Sandbox and provider settings stay fixed for the process lifetime.
func (a *assembly) watchConfig(ctx context.Context, path string) error {
	w, err := config.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Close()
		return err
	}
	w.Start(ctx)
	a.watcher = w

	go func() {
		for ev := range w.Events() {
			cfg, err := config.Load(ev.Path)
			if err != nil {
				slog.Warn("config reload skipped", "path", ev.Path, "error", err)
				continue
			}
			a.rt.SetSystemPrompt(cfg.SystemPrompt)
			a.rt.SetMaxHistory(cfg.MaxHistory)
			slog.Info("config reloaded", "path", ev.Path)
		}
	}()

	return nil
}

func (a *assembly) newSession() *session.Session {
	return session.New(
		session.WithWorkdir(a.cfg.Sandbox.Workdir),
		session.WithMaxIterations(a.cfg.MaxIterations),
	)
}
