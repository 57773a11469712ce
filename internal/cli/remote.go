package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ASHISH26940/sharedvars/internal/client"
	"github.com/ASHISH26940/sharedvars/internal/config"
	"github.com/ASHISH26940/sharedvars/internal/journal"
	"github.com/ASHISH26940/sharedvars/internal/variant"
	"github.com/hashicorp/go-hclog"
)

// Bounds the single connection attempt made by add and quit.
const dialTimeout = 5 * time.Second

// Represents the 'sharedvars add' command.
type AddCmd struct {
	Name  string `arg:"" help:"Variable name. Must not contain ':'."`
	Kind  string `arg:"" enum:"i,f,b,s" help:"Value kind: i (int32), f (float32), b (bool) or s (string)."`
	Value string `arg:"" help:"Value text."`
}

// Executes the add command. The server sends no acknowledgement.
func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	v, err := variant.Parse(variant.KindOf(c.Kind), c.Value)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	addr := serverAddr(cfg)
	if err := client.Push(ctx, addr, c.Name, v); err != nil {
		return err
	}
	logger.Debug("add sent", "addr", addr, "name", c.Name, "value", v)
	return nil
}

// Represents the 'sharedvars quit' command.
type QuitCmd struct{}

// Executes the quit command.
func (c *QuitCmd) Run(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	addr := serverAddr(cfg)
	if err := client.SendQuit(ctx, addr); err != nil {
		return err
	}
	logger.Debug("quit sent", "addr", addr)
	return nil
}

// Represents the 'sharedvars journal' command.
type JournalCmd struct {
	Path string `arg:"" optional:"" type:"path" help:"Journal file. Defaults to the configured journal."`
}

// Executes the journal command.
func (c *JournalCmd) Run(cfg *config.Config) error {
	path := c.Path
	if path == "" {
		path = cfg.Journal
	}
	if path == "" {
		return fmt.Errorf("no journal path given and none configured")
	}
	return journal.Replay(path, func(e journal.Entry) error {
		if e.Op == "add" {
			fmt.Printf("%s %s add %s:%s=%s\n", e.Time.Format(time.RFC3339), e.Conn, e.Kind, e.Name, e.Value)
			return nil
		}
		fmt.Printf("%s %s %s\n", e.Time.Format(time.RFC3339), e.Conn, e.Op)
		return nil
	})
}
