package cli

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/snowmerak/ldplugin/lib/capability"
	"github.com/snowmerak/ldplugin/lib/config"
	"github.com/snowmerak/ldplugin/lib/plugin"
	"github.com/snowmerak/ldplugin/lib/status"
)

type vectorFlags struct {
	outputName string
	outputType string
	options    []string
	binary     bool
}

// NewVectorCommand creates the vector command, which prints the capability
// vector a backend would receive.
func NewVectorCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &vectorFlags{}

	cmd := &cobra.Command{
		Use:   "vector [link.yaml]",
		Short: "Print the capability vector handed to backends",
		Long: `Vector loads a capturing backend into a fresh session and prints the
capability vector it received, either as a listing or, with --binary, in
its wire form. A link description, when given, sets the output and the
options; flags are used otherwise.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runVector(rootOpts, flags, path, cmd)
		},
	}

	cmd.Flags().StringVar(&flags.outputName, "output-name", "a.out", "output artifact path")
	cmd.Flags().StringVar(&flags.outputType, "output-type", "exec", "output kind (rel|exec|dyn)")
	cmd.Flags().StringSliceVarP(&flags.options, "plugin-opt", "O", nil, "options passed to the backend")
	cmd.Flags().BoolVar(&flags.binary, "binary", false, "write the wire form instead of a listing")

	return cmd
}

func runVector(opts *RootOptions, flags *vectorFlags, path string, cmd *cobra.Command) error {
	sessionOpts, err := vectorSessionOptions(opts.Fs, flags, path)
	if err != nil {
		return err
	}

	var captured capability.Vector
	capture := plugin.OnloadFunc(func(v capability.Vector) status.Status {
		captured = append(capability.Vector(nil), v...)
		return status.OK
	})

	s := plugin.NewSession(sessionOpts)
	if err := s.Load("vector", capture); err != nil {
		return err
	}
	if err := s.Cleanup(); err != nil {
		return err
	}

	if flags.binary {
		data, err := captured.MarshalBinary()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	return captured.Dump(cmd.OutOrStdout())
}

func vectorSessionOptions(fs afero.Fs, flags *vectorFlags, path string) (*plugin.SessionOptions, error) {
	if path != "" {
		cfg, err := config.Load(fs, path, nil)
		if err != nil {
			return nil, err
		}
		return cfg.SessionOptions(fs, nil)
	}

	outputType, err := capability.ParseOutputType(flags.outputType)
	if err != nil {
		return nil, fmt.Errorf("--output-type: %w", err)
	}
	opts := plugin.DefaultSessionOptions()
	opts.Fs = fs
	opts.OutputName = flags.outputName
	opts.OutputType = outputType
	opts.PluginOptions = flags.options
	return opts, nil
}
