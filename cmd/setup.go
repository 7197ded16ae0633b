package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/pmx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the embedded template when it is missing, then initializes the
// database and the library and media directories.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return err
		}
		r.config = config
		r.writePlain("✓ Created %s\n", r.configPath)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if _, err := r.openDatabase(); err != nil {
		return err
	}
	r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)

	for _, dir := range []string{r.config.Store.Root, r.config.Store.MediaRoot} {
		if dir == "" {
			continue
		}
		path, err := shared.ExpandPath(dir)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	r.writePlain("\nNext steps:\n")
	r.writePlain("1. Fill in credentials with `pmx config set` or by editing %s\n", r.configPath)
	r.writePlain("2. Run `pmx auth flickr` and `pmx auth google`\n")
	r.writePlain("3. Run `pmx seed`\n")
	return nil
}

// SetupCookies stores the session cookies the source requires for original video downloads.
//
// Accepts a cURL command copied from any logged-in request in the browser.
func (r *Runner) SetupCookies(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var capture *shared.CurlCapture
	var err error

	if curlFile != "" {
		capture, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Debug("parsed cURL from file", "file", curlFile)
	} else {
		capture, err = shared.ParseCurlCommand([]byte(curlCmd))
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
	}

	session, epass, err := capture.SessionCookies()
	if err != nil {
		return err
	}

	r.config.Source.CookieSession = session
	r.config.Source.CookieEpass = epass
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return err
	}

	r.logger.Info("session cookies saved", "path", r.configPath)
	return r.writePlain("✓ Session cookies saved to %s\n", r.configPath)
}

// ConfigSet updates one dotted key of an existing config file.
func (r *Runner) ConfigSet(ctx context.Context, cmd *cli.Command) error {
	key := cmd.StringArg("key")
	value := cmd.StringArg("value")
	if key == "" {
		return fmt.Errorf("%w: key", shared.ErrMissingArgument)
	}

	if _, err := os.Stat(r.configPath); err != nil {
		return fmt.Errorf("%w: %s (run `pmx setup` first)", shared.ErrMissingConfig, r.configPath)
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		return err
	}
	if err := config.Set(key, value); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if err := shared.SaveConfig(r.configPath, config); err != nil {
		return err
	}

	r.config = config
	return r.writePlain("✓ %s updated\n", key)
}
