package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/polzovatel/autoanswer/internal/config"
	"github.com/polzovatel/autoanswer/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// app is what PersistentPreRunE prepares for every subcommand.
type app struct {
	cfgFile string
	cfg     *config.Config
	log     zerolog.Logger
	closer  io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "autoanswer",
		Short:         "Answers Unipus course exercises in a real browser.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log, a.closer = logging.New(cfg.Logging, cmd.ErrOrStderr())
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yml)")
	root.AddCommand(newRunCmd(a), newTranscribeCmd(a))
	return root
}

func (a *app) component(name string) zerolog.Logger {
	return a.log.With().Str("comp", name).Logger()
}
