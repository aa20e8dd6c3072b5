package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage:
  missioncontrol [serve]          run the dashboard server
  missioncontrol useradd -u NAME  create an account
`

// Run is the CLI entrypoint used by cmd/missioncontrol.
// It returns an error instead of calling os.Exit to keep defers effective.
func Run(args []string) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	cfg := LoadConfig()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "serve":
		log := NewLogger(cfg.LogLevel, cfg.LogFormat)
		a, err := New(ctx, cfg, log)
		if err != nil {
			return err
		}
		return a.Run(ctx)
	case "useradd":
		// Prompts go to stderr; the log only carries warnings.
		log := NewLogger("warn", cfg.LogFormat)
		return RunUserAdd(ctx, cfg, log, args, os.Stderr)
	case "help", "-h", "--help":
		return printUsage(os.Stdout)
	default:
		_ = printUsage(os.Stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage(w io.Writer) error {
	_, err := io.WriteString(w, usage)
	return err
}
