package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/automata/program"
)

// Generation targets.
const (
	targetWGSL = "wgsl"
	targetGo   = "go"
)

func newGenerateCmd(root *rootFlags) *cobra.Command {
	var input, output, target, pkg string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Emit the kernel source of a descriptor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := readDescriptor(input)
			if err != nil {
				return err
			}
			p, err := program.Compile(d)
			if err != nil {
				return err
			}

			var src []byte
			switch target {
			case targetWGSL:
				src = []byte(p.WGSL())
			case targetGo:
				if src, err = p.GoSource(pkg); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown target %q, want %s or %s", target, targetWGSL, targetGo)
			}
			root.logger.Info("generated", "target", target, "bytes", len(src), "fingerprint", p.Fingerprint())

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(src)
				return err
			}
			return os.WriteFile(output, src, 0o644) //nolint:gosec // generated source is not secret
		},
	}
	addInputFlag(cmd, &input)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, stdout when empty")
	cmd.Flags().StringVarP(&target, "target", "t", targetWGSL, "target language: wgsl or go")
	cmd.Flags().StringVar(&pkg, "package", "kernel", "package name of generated Go")
	return cmd
}
