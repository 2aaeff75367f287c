package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/blue-creative/db-rb/internal/catalog"
	"github.com/blue-creative/db-rb/internal/identity"
	"github.com/blue-creative/db-rb/internal/repositories"
	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/blue-creative/db-rb/internal/tasks"
	"github.com/charmbracelet/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	now        func() time.Time
	getenv     func(string) string
	engine     *tasks.LibraryEngine
	mu         sync.Mutex
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Now        func() time.Time
	Getenv     func(string) string
	Engine     *tasks.LibraryEngine // used as-is instead of opening the configured database
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		now:        opts.Now,
		getenv:     opts.Getenv,
		engine:     opts.Engine,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, ingestCommand, tracksCommand, compareCommand, scanCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before applies the global flags. It runs ahead of every command.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if path := cmd.String("config"); path != "" && r.configPath == "" {
		r.configPath = path
	}
	return ctx, nil
}

// loadConfig returns the configuration, reading it on first use. A missing file means defaults.
func (r *Runner) loadConfig() (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	r.config = shared.DefaultConfig()
	if r.configPath == "" {
		return r.config, nil
	}
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		return r.config, nil
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		r.config = nil
		return nil, err
	}
	r.config = config
	return config, nil
}

// open returns the library engine, opening and locking the configured catalog database.
// The returned function releases the database and the lock.
func (r *Runner) open(ctx context.Context) (*tasks.LibraryEngine, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine != nil {
		return r.engine, func() {}, nil
	}

	config, err := r.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	lock, err := shared.LockDatabase(config.Database.Path)
	if err != nil {
		return nil, nil, err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		shared.UnlockDatabase(lock)
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	release := func() {
		if err := db.Close(); err != nil {
			r.logger.Warn("failed to close database", "error", err)
		}
		if err := shared.UnlockDatabase(lock); err != nil {
			r.logger.Warn("failed to release catalog lock", "error", err)
		}
	}

	if err := shared.RunMigrations(db); err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store, err := catalog.New(
		catalog.WithBackend(repositories.NewCatalogBackend(db)),
		catalog.WithUser(config.Audit.User),
		catalog.WithLogger(shared.WithLogger(r.logger, "component", "catalog")),
	)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	resolver := identity.NewResolver(identity.ConfigFrom(config.Matching))
	engine := tasks.NewLibraryEngine(store, resolver, tasks.OptionsFrom(config, r.logger))
	r.logger.Debug("catalog opened", "path", config.Database.Path, "tracks", store.Len())

	return engine, release, nil
}

// progress starts a printer for engine updates. Calling the returned function closes the channel
// and waits until every received update is written.
func (r *Runner) progress(print func(tasks.ProgressUpdate)) (chan<- tasks.ProgressUpdate, func()) {
	ch := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range ch {
			print(update)
		}
	}()
	return ch, func() {
		close(ch)
		<-done
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return err
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// writeTable renders rows as a rounded table. Columns default to left alignment.
func (r *Runner) writeTable(headers []string, rows [][]string, aligns []columnAlignment) error {
	columns := len(headers)
	if columns == 0 {
		return nil
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		tr := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				tr[i] = row[i]
			} else {
				tr[i] = ""
			}
		}
		tw.AppendRow(tr)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return r.writePlain("%s\n", tw.Render())
}

// shortID keeps ids readable in tables.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
