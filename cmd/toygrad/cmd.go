package main

import (
	"flag"
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/born-ml/toygrad/autodiff"
	"github.com/born-ml/toygrad/tensor"
)

// newRootCmd builds the command tree. klog flags (-v, --logtostderr, ...)
// are registered as persistent flags.
func newRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "toygrad",
		Short:         "Tensor graphs with reverse-mode autodiff",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	rootCmd.AddCommand(
		newVersionCmd(),
		newDemoCmd(),
		newGradcheckCmd(),
		newGraphCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "toygrad %s\n", version)
		},
	}
}

// addArenaFlags registers the flags shared by every command that builds a
// graph.
func addArenaFlags(cmd *cobra.Command) {
	cmd.Flags().String("shape", "2,3,4", "Shape of the input tensor")
	cmd.Flags().Int("axis", 1, "Axis reduced by max")
	cmd.Flags().Uint64("seed", 0, "Seed for random initialization (random if unset)")
	cmd.Flags().Int("workers", 0, "Worker goroutines per pass (0 uses every CPU)")
	cmd.Flags().Bool("sequential", false, "Run every pass on one goroutine")
}

// arenaOptions holds the parsed shared flags.
type arenaOptions struct {
	shape tensor.Shape
	axis  int
	arena *autodiff.Arena
}

func parseArenaFlags(cmd *cobra.Command) (*arenaOptions, error) {
	text, err := cmd.Flags().GetString("shape")
	if err != nil {
		return nil, err
	}
	shape, err := tensor.ParseShape(text)
	if err != nil {
		return nil, fmt.Errorf("invalid --shape: %w", err)
	}

	axis, err := cmd.Flags().GetInt("axis")
	if err != nil {
		return nil, err
	}
	if err := tensor.ValidateAxis(shape, axis, false); err != nil {
		return nil, fmt.Errorf("invalid --axis: %w", err)
	}

	cfg := autodiff.DefaultParallel()
	if sequential, _ := cmd.Flags().GetBool("sequential"); sequential {
		cfg = autodiff.Sequential()
	} else if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.NumWorkers = workers
	}

	opts := []autodiff.Option{autodiff.WithParallel(cfg)}
	if cmd.Flags().Changed("seed") {
		seed, err := cmd.Flags().GetUint64("seed")
		if err != nil {
			return nil, err
		}
		opts = append(opts, autodiff.WithSeed(seed))
	}

	klog.V(1).InfoS("Parsed flags", "shape", shape, "axis", axis,
		"parallel", cfg.Enabled, "workers", cfg.NumWorkers)

	return &arenaOptions{
		shape: shape,
		axis:  axis,
		arena: autodiff.New(opts...),
	}, nil
}

// maxSumGraph builds y = sum(max(x, axis)) over a random x.
func maxSumGraph(o *arenaOptions) (x, y *autodiff.Tensor, err error) {
	x, err = o.arena.RandN(o.shape)
	if err != nil {
		return nil, nil, err
	}
	m, err := x.Max(o.axis)
	if err != nil {
		return nil, nil, err
	}
	y, err = m.SumAll()
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}
