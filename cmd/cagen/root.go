package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gogpu/automata"
	"github.com/gogpu/automata/model"

	_ "github.com/gogpu/automata/gpu" // registers the gpu backend
)

type rootFlags struct {
	logLevel string
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{logger: slog.New(slog.DiscardHandler)}
	cmd := &cobra.Command{
		Use:           "cagen",
		Short:         "Compile and run tiled cellular automata",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			f.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			automata.SetLogger(f.logger)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newGenerateCmd(f),
		newInspectCmd(f),
		newRunCmd(f),
	)
	return cmd
}

// addInputFlag registers the required descriptor flag.
func addInputFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "input", "i", "", "descriptor file (.json or .xml)")
	_ = cmd.MarkFlagRequired("input")
}

func readDescriptor(path string) (*model.Descriptor, error) {
	d, err := model.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return d, nil
}
