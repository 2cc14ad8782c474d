package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wavefrontHQ/newrelic/internal/domain"
)

type checkpointResetter interface {
	Reset(ctx context.Context, streamID string) error
}

type checkpointLister interface {
	List(ctx context.Context) (map[string]string, error)
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "collector",
		Short:         "Incremental metrics collector",
		Long:          "Polls metrics sources in resumable time-window chunks and forwards points to a Wavefront or OpenTSDB proxy.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config")

	root.AddCommand(
		newRunCmd(&cfgPath),
		newOnceCmd(&cfgPath),
		newCheckpointCmd(&cfgPath),
		newCacheCmd(&cfgPath),
	)
	return root
}

func newRunCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the collector as a daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			a.handleSignals()
			a.serveOps()

			err = a.runner.Run(cmd.Context(), a.cfg.CycleDelay)
			if errors.Is(err, domain.ErrCanceled) {
				a.log.Info("collector stopped")
				return nil
			}
			return err
		},
	}
}

func newOnceCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single collection cycle and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			a.handleSignals()

			err = a.runner.RunOnce(cmd.Context())
			if errors.Is(err, domain.ErrCanceled) {
				a.log.Info("cycle interrupted")
				return nil
			}
			return err
		},
	}
}

func newCheckpointCmd(cfgPath *string) *cobra.Command {
	cp := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect and roll back stream watermarks",
	}

	cp.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every stream's committed watermark",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			lister, ok := a.store.(checkpointLister)
			if !ok {
				return fmt.Errorf("storage backend %q cannot list checkpoints", a.cfg.Storage.Backend)
			}
			marks, err := lister.List(cmd.Context())
			if err != nil {
				return err
			}
			for stream, mark := range marks {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", stream, mark)
			}
			return nil
		},
	})

	cp.AddCommand(&cobra.Command{
		Use:   "reset <stream>",
		Short: "Delete a stream's watermark so the next run starts from its lookback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			resetter, ok := a.store.(checkpointResetter)
			if !ok {
				return fmt.Errorf("storage backend %q cannot reset checkpoints", a.cfg.Storage.Backend)
			}
			if err := resetter.Reset(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.log.Info("watermark reset", zap.String("stream", args[0]))
			return nil
		},
	})

	return cp
}

func newCacheCmd(cfgPath *string) *cobra.Command {
	cache := &cobra.Command{
		Use:   "cache",
		Short: "Operate on the reference-data cache",
	}

	cache.AddCommand(&cobra.Command{
		Use:   "invalidate <key>",
		Short: "Drop a cache entry so the next lookup refetches",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cache == nil {
				return fmt.Errorf("storage backend %q carries no reference-data cache", a.cfg.Storage.Backend)
			}
			return a.cache.Invalidate(args[0])
		},
	})

	return cache
}
