package main

import (
	"os"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/tally/internal/api"
	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/dashboard"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/session"
)

var CLI struct {
	Config  config.Config `embed:""`
	Version kong.VersionFlag

	Login     cli.LoginCmd     `cmd:"" help:"Sign in with email and password."`
	Register  cli.RegisterCmd  `cmd:"" help:"Create an account and sign in."`
	Logout    cli.LogoutCmd    `cmd:"" help:"Forget the stored credential."`
	Status    cli.StatusCmd    `cmd:"" help:"Show keyring, session and server status."`
	Dashboard cli.DashboardCmd `cmd:"" help:"Print today's goals and counters."`
	Toggle    cli.ToggleCmd    `cmd:"" help:"Toggle today's completion of a goal."`
	Tui       cli.TuiCmd       `cmd:"" help:"Launch the interactive TUI." default:"1"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habit tracker: today's goals and completion streaks"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": constants.Version},
		config.Vars(),
	)

	cfg := CLI.Config
	if err := cfg.Validate(); err != nil {
		errors.Fatal(err)
	}
	if err := logger.Init(logger.Config{Debug: cfg.Debug, ConfigDir: cfg.ConfigDir}); err != nil {
		errors.Fatalf("failed to initialize logger: %v", err)
	}
	logger.Debug("starting", "version", constants.Version, "base_url", cfg.BaseURL)

	httpClient := cfg.HTTPClient()
	sess := session.New(session.Config{BaseURL: cfg.BaseURL, HTTPClient: httpClient}, keyring.Default())
	client := api.New(cfg.BaseURL, httpClient, sess)

	appCtx := &cli.Context{
		Config:  &cfg,
		Session: sess,
		Engine:  dashboard.New(client),
		Out:     os.Stdout,
	}

	err := ctx.Run(appCtx)
	errors.Fatal(err)
	_ = logger.Close()
}
