package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/snowmerak/ldplugin/lib/config"
	"github.com/snowmerak/ldplugin/lib/dynload"
	"github.com/snowmerak/ldplugin/lib/plugin"
)

// ErrLinkFailed is returned when a backend failed or reported an error.
var ErrLinkFailed = errors.New("link failed")

type runFlags struct {
	backends []string
	inputs   []string
	options  []string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <link.yaml>",
		Short: "Run a plugin session over the inputs of a link description",
		Long: `Run loads every backend named in the link description, offers each
input for claiming, runs symbol resolution and the all-symbols-read
handlers, then cleans up and prints what every input resolved to.

Relative input paths are taken relative to the description's directory.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(rootOpts, flags, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&flags.backends, "backend", nil, "backends to load instead of the configured ones")
	cmd.Flags().StringSliceVar(&flags.inputs, "input", nil, "additional inputs to offer")
	cmd.Flags().StringSliceVarP(&flags.options, "plugin-opt", "O", nil, "additional options passed to every backend")

	return cmd
}

func runLink(opts *RootOptions, flags *runFlags, path string, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Fs, path, nil,
		config.WithBackends(flags.backends),
		config.WithInputs(flags.inputs),
		config.WithOptions(flags.options),
	)
	if err != nil {
		return err
	}

	level := cfg.Level()
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	logger := newLogger(cmd.ErrOrStderr(), level)
	defer logger.Sync() //nolint:errcheck
	plugin.SetLogger(logger)

	sessionOpts, err := cfg.SessionOptions(opts.Fs, logger)
	if err != nil {
		return err
	}
	s := plugin.NewSession(sessionOpts)

	report, linkErr := drive(s, cfg, filepath.Dir(path), logger)
	if err := writeReport(cmd.OutOrStdout(), opts.Format, report); err != nil {
		return err
	}
	if linkErr != nil {
		return linkErr
	}
	if report.Failed {
		return ErrLinkFailed
	}
	return nil
}

// drive runs the whole session. Cleanup runs whatever happened before it.
func drive(s *plugin.Session, cfg *config.Config, baseDir string, logger *zap.Logger) (*Report, error) {
	report := &Report{
		Output:     cfg.Output.Name,
		OutputType: cfg.Output.Type,
	}

	err := load(s, cfg, logger)
	if err == nil {
		err = claimAll(s, cfg, baseDir, report)
	}
	if err == nil {
		err = s.AllSymbolsRead()
	}
	report.collect(s)

	if cerr := s.Cleanup(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	report.Failed = s.Failed() || err != nil
	return report, err
}

func load(s *plugin.Session, cfg *config.Config, logger *zap.Logger) error {
	for _, name := range cfg.Backends {
		b, err := dynload.Find(name, logger)
		if err != nil {
			return err
		}
		if err := s.Load(name, b); err != nil {
			return err
		}
	}
	return nil
}

func claimAll(s *plugin.Session, cfg *config.Config, baseDir string, report *Report) error {
	for _, in := range cfg.Inputs {
		p := in
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}

		h, claimed, err := s.ClaimPath(p)
		if err != nil {
			return fmt.Errorf("input %s: %w", p, err)
		}

		ir := InputReport{Path: p, Claimed: claimed}
		if claimed {
			ir.Backend, _ = s.Owner(h)
			ir.handle = h
		}
		report.Inputs = append(report.Inputs, ir)
	}
	return nil
}
