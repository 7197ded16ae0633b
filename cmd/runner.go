package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/pmx/internal/repositories"
	"github.com/desertthunder/pmx/internal/services"
	"github.com/desertthunder/pmx/internal/shared"
	"github.com/desertthunder/pmx/internal/store"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	BorderStyle(lipgloss.DoubleBorder()).
	BorderTop(true).
	BorderBottom(true).
	Padding(0, 1)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Clients, the library and the database are opened on first use so that commands only require the
// credentials they actually need.
type Runner struct {
	config      *shared.Config
	configPath  string
	source      services.Source
	dest        services.Destination
	library     *store.Library
	runs        *repositories.StageRunRepository
	db          *sql.DB
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	input       *bufio.Reader
	openBrowser func(url string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Source      services.Source
	Destination services.Destination
	Library     *store.Library
	Runs        *repositories.StageRunRepository
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Input       io.Reader
	OpenBrowser func(url string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		source:      opts.Source,
		dest:        opts.Destination,
		library:     opts.Library,
		runs:        opts.Runs,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		input:       bufio.NewReader(opts.Input),
		openBrowser: opts.OpenBrowser,
	}
}

// Before loads the configuration named by the root --config flag. A missing file leaves the
// defaults in place so that `pmx setup` can create it.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	r.configPath = cmd.String("config")
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		return ctx, nil
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		return ctx, err
	}
	if err := config.Validate(); err != nil {
		return ctx, err
	}
	r.config = config
	return ctx, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, configCommand, authCommand,
		seedCommand, populateCommand, downloadCommand, albumsCommand, uploadCommand,
		statusCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Close releases the database, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) openDatabase() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	config := r.config.Database
	db, err := shared.NewDatabase(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	shared.ConfigureDatabase(db, config.MaxOpenConns, config.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	r.db = db
	return db, nil
}

func (r *Runner) openLibrary() (*store.Library, error) {
	if r.library != nil {
		return r.library, nil
	}

	var backend store.Store
	switch r.config.Store.Backend {
	case "sqlite":
		db, err := r.openDatabase()
		if err != nil {
			return nil, err
		}
		backend = store.NewSQLiteStore(db)
	case "fs", "":
		root, err := shared.ExpandPath(r.config.Store.Root)
		if err != nil {
			return nil, err
		}
		backend = store.NewFileStore(root)
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrStoreBackend, r.config.Store.Backend)
	}

	r.library = store.NewLibrary(backend)
	return r.library, nil
}

func (r *Runner) openRuns() (*repositories.StageRunRepository, error) {
	if r.runs != nil {
		return r.runs, nil
	}
	db, err := r.openDatabase()
	if err != nil {
		return nil, err
	}
	r.runs = repositories.NewStageRunRepository(db)
	return r.runs, nil
}

func (r *Runner) openSource() (services.Source, error) {
	if r.source != nil {
		return r.source, nil
	}

	config := r.config.Source
	var auth services.Authorizer = services.NoAuth{}
	if config.OAuthToken != "" && config.OAuthTokenSecret != "" {
		auth = &services.OAuth1{
			ConsumerKey:    config.APIKey,
			ConsumerSecret: config.APISecret,
			Token:          config.OAuthToken,
			TokenSecret:    config.OAuthTokenSecret,
		}
	}

	svc, err := services.NewFlickrService(services.FlickrOpts{
		BaseURL:       config.BaseURL,
		APIKey:        config.APIKey,
		UserID:        config.UserID,
		PerPage:       config.PerPage,
		RateLimit:     config.RateLimit,
		CookieSession: config.CookieSession,
		CookieEpass:   config.CookieEpass,
		Auth:          auth,
		HTTPClient:    r.httpClient,
	})
	if err != nil {
		return nil, err
	}
	r.source = svc
	return svc, nil
}

func (r *Runner) openDestination(ctx context.Context) (services.Destination, error) {
	if r.dest != nil {
		return r.dest, nil
	}

	config := r.config.Destination
	tokenPath, err := shared.ExpandPath(config.TokenPath)
	if err != nil {
		return nil, err
	}
	token, err := services.LoadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("%w (run `pmx auth google` first)", err)
	}

	oauthConfig := services.GoogleOAuthConfig(config.ClientID, config.ClientSecret, config.RedirectURI)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	source := oauth2.ReuseTokenSource(token, oauthConfig.TokenSource(ctx, token))

	r.dest = services.NewPhotosService(services.PhotosOpts{
		BaseURL:    config.BaseURL,
		RateLimit:  config.RateLimit,
		Auth:       services.TokenSourceAuth{Source: source},
		HTTPClient: r.httpClient,
	})
	return r.dest, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("\n%s\n", headerStyle.Render(title))
}

// prompt writes question and reads one trimmed line of input.
func (r *Runner) prompt(question string) (string, error) {
	if err := r.writePlain("%s", question); err != nil {
		return "", err
	}
	line, err := r.input.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("%w: no input", shared.ErrMissingArgument)
	}
	return strings.TrimSpace(line), nil
}
