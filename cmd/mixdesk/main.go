package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/linuxmatters/mixdesk/internal/cli"
	"github.com/linuxmatters/mixdesk/internal/fault"
)

var (
	version = "0.0.1"
)

// versionFlag prints the styled version and exits before any command runs.
type versionFlag bool

func (versionFlag) BeforeReset(app *kong.Kong) error {
	cli.PrintVersion(version)
	app.Exit(0)
	return nil
}

// CLI defines the command-line interface
type CLI struct {
	Version  versionFlag `short:"v" help:"Show version information"`
	Config   string      `short:"c" type:"path" help:"Path to TOML config file (optional)"`
	LogLevel string      `name:"log-level" placeholder:"LEVEL" help:"debug, info, warn or error (overrides config)"`
	LogFile  string      `name:"log-file" type:"path" help:"Append logs to this file (overrides config)"`
	Logs     bool        `help:"Save a detailed analysis report beside each file"`
	JSON     bool        `name:"json" help:"Print results as JSON"`
	Plain    bool        `help:"Plain progress bars instead of the interactive view"`
	Track    string      `help:"Track id for stored settings (default: file name)"`

	Analyse   AnalyseCmd   `cmd:"" aliases:"analyze" help:"Profile tracks: loudness, spectrum, stereo width and diagnostics"`
	Spectrum  SpectrumCmd  `cmd:"" help:"Spectral profile and mains hum check"`
	Stems     StemsCmd     `cmd:"" help:"Split a track into band-filtered stems"`
	Loudness  LoudnessCmd  `cmd:"" help:"Measure integrated loudness, true peak and loudness range"`
	Preset    PresetCmd    `cmd:"" help:"Blend a genre preset into mix and master settings"`
	Match     MatchCmd     `cmd:"" help:"Suggest mix changes that move a track towards a reference"`
	Normalise NormaliseCmd `cmd:"" aliases:"normalize" help:"Plan, and optionally apply, loudness normalisation"`
	Settings  SettingsCmd  `cmd:"" help:"Show, and optionally render, the settings stored for a track"`
	Genres    GenresCmd    `cmd:"" help:"List the genre preset catalog"`
	Watch     WatchCmd     `cmd:"" help:"Analyse audio files as they arrive in a directory"`
}

func main() {
	cliArgs := &CLI{}
	kctx := kong.Parse(cliArgs,
		kong.Name("mixdesk"),
		kong.Description("Audio analysis and mix/master decision engine"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cliArgs, kctx.Command())
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	kctx.BindTo(ctx, (*context.Context)(nil))
	err = kctx.Run(app)
	app.Close()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		cli.PrintError(err.Error())
		if errors.Is(err, fault.ErrInput) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
