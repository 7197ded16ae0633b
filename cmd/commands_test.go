package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/pmx/internal/formatter"
	"github.com/desertthunder/pmx/internal/models"
	"github.com/desertthunder/pmx/internal/repositories"
	"github.com/desertthunder/pmx/internal/services"
	"github.com/desertthunder/pmx/internal/shared"
	"github.com/desertthunder/pmx/internal/store"
	tu "github.com/desertthunder/pmx/internal/testing"
)

// librarySource serves two photos, one of them in album a1.
type librarySource struct {
	failSizes bool
}

func onePage() services.Paging {
	pages := services.FlexInt(1)
	return services.Paging{Page: 1, Pages: &pages}
}

func (s *librarySource) Photos(ctx context.Context, page int) (*services.PhotosPage, error) {
	return &services.PhotosPage{Paging: onePage(), Photo: []services.PhotoRef{{ID: "p1"}, {ID: "p2"}}}, nil
}

func (s *librarySource) Albums(ctx context.Context, page int) (*services.AlbumsPage, error) {
	return &services.AlbumsPage{Paging: onePage(), Photoset: []services.AlbumRef{
		{ID: "a1", Title: services.Content{Content: "Trip"}, DateCreate: 1400000000},
	}}, nil
}

func (s *librarySource) AlbumPhotos(ctx context.Context, albumID string, page int) (*services.PhotosPage, error) {
	return &services.PhotosPage{Paging: onePage(), Photo: []services.PhotoRef{{ID: "p1"}}}, nil
}

func (s *librarySource) PhotoInfo(ctx context.Context, id string) (*services.PhotoInfo, error) {
	info := &services.PhotoInfo{ID: id, Title: services.Content{Content: "Photo " + id}, Media: "photo"}
	info.Dates.Posted = 1400000000
	return info, nil
}

func (s *librarySource) PhotoSizes(ctx context.Context, id string) ([]services.Size, error) {
	if s.failSizes {
		return nil, fmt.Errorf("%w: sizes unavailable", shared.ErrAPIRequest)
	}
	dim := services.Dimension{Value: 4, Valid: true}
	return []services.Size{{Label: "Original", Width: dim, Height: dim, Source: "https://live.example/" + id + ".jpg", Media: "photo"}}, nil
}

func (s *librarySource) Fetch(ctx context.Context, rawURL string, withCookies bool) (*services.Download, error) {
	return &services.Download{Data: []byte("bytes of " + rawURL), ContentType: "image/jpeg", FinalURL: rawURL}, nil
}

// idleDestination fails every call; commands under test must not reach it.
type idleDestination struct{}

func (idleDestination) CreateAlbum(ctx context.Context, title string) (string, error) {
	return "", shared.ErrServiceUnavailable
}

func (idleDestination) UploadBytes(ctx context.Context, data []byte, contentType string) (string, error) {
	return "", shared.ErrServiceUnavailable
}

func (idleDestination) BatchCreate(ctx context.Context, albumID string, items []services.NewMediaItem) ([]services.MediaItemResult, error) {
	return nil, shared.ErrServiceUnavailable
}

type harness struct {
	runner  *Runner
	output  *bytes.Buffer
	library *store.Library
	runs    *repositories.StageRunRepository
	config  *shared.Config
}

func newHarness(t *testing.T, source services.Source) *harness {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	require.NoError(t, err)
	shared.ConfigureDatabase(db, 1, 1)
	require.NoError(t, shared.RunMigrations(db))
	t.Cleanup(func() { db.Close() })

	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Store.Root = filepath.Join(dir, "library")
	config.Store.MediaRoot = filepath.Join(dir, "media")
	config.Pipeline.RetryLimit = 3

	logger := shared.NewLogger(io.Discard)
	logger.SetLevel(log.FatalLevel)

	h := &harness{
		output:  &bytes.Buffer{},
		library: store.NewLibrary(store.NewFileStore(config.Store.Root)),
		runs:    repositories.NewStageRunRepository(db),
		config:  config,
	}
	h.runner = NewRunner(RunnerOpts{
		Config:      config,
		ConfigPath:  filepath.Join(dir, "config.toml"),
		Source:      source,
		Destination: idleDestination{},
		Library:     h.library,
		Runs:        h.runs,
		Logger:      logger,
		Output:      h.output,
		OpenBrowser: func(string) error { return nil },
	})
	return h
}

func (h *harness) run(args ...string) error {
	app := &cli.Command{
		Name:      "pmx",
		Commands:  h.runner.register(),
		Writer:    io.Discard,
		ErrWriter: io.Discard,
	}
	return app.Run(context.Background(), append([]string{"pmx"}, args...))
}

func TestPipelineCommands(t *testing.T) {
	t.Run("seed and populate converge and are recorded", func(t *testing.T) {
		h := newHarness(t, &librarySource{})

		require.NoError(t, h.run("seed"))
		require.NoError(t, h.run("populate"))

		out := h.output.String()
		assert.Contains(t, out, "seed: converged")
		assert.Contains(t, out, "populate: converged")

		photo, err := h.library.GetPhoto("a1", "p1")
		require.NoError(t, err)
		assert.Equal(t, "Photo p1", photo.Title)
		assert.Equal(t, "https://live.example/p1.jpg", photo.URL)

		_, err = h.library.GetPhoto(models.Unsorted, "p2")
		require.NoError(t, err)

		runs, err := h.runs.List(map[string]any{})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "populate", runs[0].Stage)
		assert.Equal(t, models.OutcomeConverged, runs[0].Outcome)
	})

	t.Run("exhausted retries return an error", func(t *testing.T) {
		h := newHarness(t, &librarySource{failSizes: true})
		require.NoError(t, h.run("seed"))

		err := h.run("populate", "--retries", "2")
		require.ErrorIs(t, err, shared.ErrRetriesExhausted)
		assert.Contains(t, h.output.String(), "Operation failed to complete after 2 attempts")

		runs, err := h.runs.List(map[string]any{"stage": "populate"})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, models.OutcomeExhausted, runs[0].Outcome)
		assert.Equal(t, models.OutcomePartial, runs[1].Outcome)
	})

	t.Run("download writes into the media root", func(t *testing.T) {
		h := newHarness(t, &librarySource{})
		require.NoError(t, h.run("seed"))
		require.NoError(t, h.run("populate"))

		root := filepath.Join(t.TempDir(), "override")
		require.NoError(t, h.run("download", "--path", root))

		photo, err := h.library.GetPhoto("a1", "p1")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "a1", "p1.jpg"), photo.DownloadPath)
		tu.AssertFileExists(t, photo.DownloadPath)
	})

	t.Run("upload before albums exist is fatal", func(t *testing.T) {
		h := newHarness(t, &librarySource{})
		require.NoError(t, h.run("seed"))
		require.NoError(t, h.run("populate"))
		require.NoError(t, h.run("download"))

		err := h.run("upload")
		require.ErrorIs(t, err, shared.ErrAlbumNotCreated)
		assert.Contains(t, h.output.String(), "upload: fatal")

		runs, err := h.runs.List(map[string]any{"stage": "upload"})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, models.OutcomeFatal, runs[0].Outcome)
	})
}

func TestStatusCommand(t *testing.T) {
	seeded := func(t *testing.T) *harness {
		h := newHarness(t, &librarySource{})
		require.NoError(t, h.run("seed"))
		h.output.Reset()
		return h
	}

	t.Run("text", func(t *testing.T) {
		h := seeded(t)
		require.NoError(t, h.run("status"))

		out := h.output.String()
		assert.Contains(t, out, "Library status")
		assert.Contains(t, out, "2 photo(s), 0 linked. 0 out of 1 album(s) created.")
	})

	t.Run("json", func(t *testing.T) {
		h := seeded(t)
		require.NoError(t, h.run("status", "--format", "json"))

		var report formatter.Report
		require.NoError(t, json.Unmarshal(h.output.Bytes(), &report))
		assert.Equal(t, 2, report.Photos)
		assert.Equal(t, 2, report.Totals["seeded"])
	})

	t.Run("csv to file", func(t *testing.T) {
		h := seeded(t)
		path := filepath.Join(t.TempDir(), "status.csv")
		require.NoError(t, h.run("status", "--format", "csv", "--output", path))

		content := tu.MustReadFile(t, path)
		assert.True(t, strings.HasPrefix(content, "Collection,ID,Title"))
		assert.Contains(t, content, "a1,p1,")
	})

	t.Run("unknown format", func(t *testing.T) {
		h := seeded(t)
		assert.ErrorIs(t, h.run("status", "--format", "xml"), shared.ErrInvalidArgument)
	})
}

func TestHistoryCommand(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		h := newHarness(t, &librarySource{})
		require.NoError(t, h.run("history"))
		assert.Contains(t, h.output.String(), "No passes recorded yet.")
	})

	t.Run("filters by stage", func(t *testing.T) {
		h := newHarness(t, &librarySource{})
		require.NoError(t, h.run("seed"))
		require.NoError(t, h.run("populate"))
		h.output.Reset()

		require.NoError(t, h.run("history", "--stage", "seed", "--json"))

		var rows []historyRow
		require.NoError(t, json.Unmarshal(h.output.Bytes(), &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, "seed", rows[0].Stage)
		assert.Equal(t, 1, rows[0].Pass)
		assert.Equal(t, "converged", rows[0].Outcome)
	})

	t.Run("table", func(t *testing.T) {
		h := newHarness(t, &librarySource{})
		require.NoError(t, h.run("seed"))
		h.output.Reset()

		require.NoError(t, h.run("history"))
		out := h.output.String()
		assert.Contains(t, out, "STAGE")
		assert.Contains(t, out, "converged")
	})
}

func TestConfigCommands(t *testing.T) {
	t.Run("setup creates config, database and directories", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		h := newHarness(t, nil)
		h.runner.configPath = filepath.Join(t.TempDir(), "config.toml")

		require.NoError(t, h.run("setup"))
		t.Cleanup(func() { h.runner.Close() })

		tu.AssertFileExists(t, h.runner.configPath)
		tu.AssertFileExists(t, filepath.Join(home, ".pmx", "pmx.db"))
		tu.AssertDirExists(t, filepath.Join(home, ".pmx", "library"))
		tu.AssertDirExists(t, filepath.Join(home, ".pmx", "media"))
		assert.Contains(t, h.output.String(), "Created")
		assert.Contains(t, h.output.String(), "Next steps")
	})

	t.Run("config set updates one key", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, shared.CreateConfigFile(h.runner.configPath))

		require.NoError(t, h.run("config", "set", "source.user_id", "12345678@N00"))
		require.NoError(t, h.run("config", "set", "pipeline.retry_limit", "4"))

		config, err := shared.LoadConfig(h.runner.configPath)
		require.NoError(t, err)
		assert.Equal(t, "12345678@N00", config.Source.UserID)
		assert.Equal(t, 4, config.Pipeline.RetryLimit)
	})

	t.Run("config set rejects invalid values", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, shared.CreateConfigFile(h.runner.configPath))

		assert.ErrorIs(t, h.run("config", "set", "pipeline.retry_limit", "0"), shared.ErrInvalidConfig)
		assert.ErrorIs(t, h.run("config", "set", "pipeline.retry_limit", "many"), shared.ErrInvalidArgument)
	})

	t.Run("config set without a file", func(t *testing.T) {
		h := newHarness(t, nil)
		assert.ErrorIs(t, h.run("config", "set", "source.user_id", "x"), shared.ErrMissingConfig)
	})

	t.Run("setup cookies", func(t *testing.T) {
		h := newHarness(t, nil)
		curl := `curl 'https://www.flickr.com/photos/me/' -H 'Cookie: cookie_session=abc; cookie_epass=def; other=1'`

		require.NoError(t, h.run("setup", "cookies", "--curl", curl))

		config, err := shared.LoadConfig(h.runner.configPath)
		require.NoError(t, err)
		assert.Equal(t, "abc", config.Source.CookieSession)
		assert.Equal(t, "def", config.Source.CookieEpass)
	})

	t.Run("setup cookies needs exactly one input", func(t *testing.T) {
		h := newHarness(t, nil)
		assert.ErrorIs(t, h.run("setup", "cookies"), shared.ErrMissingArgument)
		assert.ErrorIs(t, h.run("setup", "cookies", "--curl", "x", "--curl-file", "y"), shared.ErrInvalidArgument)
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("google requires client credentials", func(t *testing.T) {
		h := newHarness(t, nil)
		h.config.Destination.ClientID = ""

		assert.ErrorIs(t, h.run("auth", "google"), shared.ErrMissingCredentials)
	})

	t.Run("flickr stores the access token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			switch r.URL.Path {
			case "/oauth/request_token":
				assert.Contains(t, header, `oauth_callback="oob"`)
				fmt.Fprint(w, "oauth_callback_confirmed=true&oauth_token=req&oauth_token_secret=reqsecret")
			case "/oauth/access_token":
				assert.Contains(t, header, `oauth_token="req"`)
				assert.Contains(t, header, `oauth_verifier="123-456-789"`)
				fmt.Fprint(w, "fullname=Jane&oauth_token=acc&oauth_token_secret=accsecret&user_nsid=12345678%40N00&username=jane")
			case "/rest/":
				assert.Contains(t, header, `oauth_token="acc"`)
				fmt.Fprint(w, `{"user":{"id":"12345678@N00","username":{"_content":"jane"}},"stat":"ok"}`)
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		h := newHarness(t, nil)
		h.config.Source.BaseURL = srv.URL
		h.config.Source.UserID = ""
		h.runner.input.Reset(strings.NewReader("123-456-789\n"))

		var opened string
		h.runner.openBrowser = func(url string) error {
			opened = url
			return nil
		}

		require.NoError(t, h.run("auth", "flickr"))
		assert.Equal(t, srv.URL+"/oauth/authorize?oauth_token=req&perms=read", opened)
		assert.Contains(t, h.output.String(), "Flickr authorized as jane (12345678@N00)")

		config, err := shared.LoadConfig(h.runner.configPath)
		require.NoError(t, err)
		assert.Equal(t, "acc", config.Source.OAuthToken)
		assert.Equal(t, "accsecret", config.Source.OAuthTokenSecret)
		assert.Equal(t, "12345678@N00", config.Source.UserID)
	})

	t.Run("flickr without a verifier", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "oauth_callback_confirmed=true&oauth_token=req&oauth_token_secret=reqsecret")
		}))
		defer srv.Close()

		h := newHarness(t, nil)
		h.config.Source.BaseURL = srv.URL
		h.runner.input.Reset(strings.NewReader("\n"))

		assert.ErrorIs(t, h.run("auth", "flickr"), shared.ErrMissingArgument)
		_, err := os.Stat(h.runner.configPath)
		assert.True(t, os.IsNotExist(err))
	})
}
