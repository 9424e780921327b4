// Package cli implements the ldplug command line driver.
package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Fs is where configs and inputs are read from.
	Fs afero.Fs
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command reading from fs. A nil fs uses the
// OS filesystem.
func NewRootCommand(fs afero.Fs) *cobra.Command {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	opts := &RootOptions{Fs: fs}

	cmd := &cobra.Command{
		Use:   "ldplug",
		Short: "Drive linker plugin sessions",
		Long:  "Load optimization backends, offer them input files and report how their symbols resolve.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewVectorCommand(opts))
	cmd.AddCommand(NewBackendsCommand(opts))

	return cmd
}

// newLogger writes console-encoded entries at level or above to w.
func newLogger(w io.Writer, level zapcore.Level) *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}
