package cli

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/ASHISH26940/sharedvars/internal/config"
	"github.com/alecthomas/kong"
	"github.com/hashicorp/go-hclog"
)

const name = "sharedvars"

// Represents the root command.
var RootCmd struct {
	Config   string     `short:"c" help:"Path to config file. Defaults to the XDG config location." type:"path" placeholder:"PATH"`
	Addr     string     `short:"a" help:"Server address, overriding host and port from the config." placeholder:"HOST:PORT"`
	LogLevel string     `short:"l" help:"Log level (trace, debug, info, warn, error)." placeholder:"LEVEL"`
	Serve    ServeCmd   `cmd:"" help:"Run the variable server until it receives quit."`
	Add      AddCmd     `cmd:"" help:"Push one variable to a running server."`
	Quit     QuitCmd    `cmd:"" help:"Send the quit handshake to a running server."`
	Journal  JournalCmd `cmd:"" help:"Print the entries of an audit journal."`
}

// Parses arguments, loads configuration and runs the selected subcommand.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(name),
		kong.Description("Shared variable store with a text protocol over TCP."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	cfg, err := loadConfig(RootCmd.Config)
	if err != nil {
		return err
	}
	if RootCmd.LogLevel != "" {
		cfg.LogLevel = RootCmd.LogLevel
	}

	kongCtx.BindTo(newLogger(cfg.LogLevel), (*hclog.Logger)(nil))
	return kongCtx.Run(cfg)
}

// Loads path, or the default location when path is empty. A missing
// default file leaves the built-in defaults in place.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.New()
	explicit := path != ""
	if !explicit {
		path = config.DefaultPath()
	}
	if err := cfg.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) hclog.Logger {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  lvl,
		Output: os.Stderr,
		Color:  hclog.AutoColor,
	})
}

// Address the commands talk to or listen on.
func serverAddr(cfg *config.Config) string {
	if RootCmd.Addr != "" {
		return RootCmd.Addr
	}
	return cfg.Addr()
}
