package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/turtacn/KnotWeave/internal/application/matching"
	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KnotWeave/pkg/errors"
	"github.com/turtacn/KnotWeave/pkg/types/common"
	dto "github.com/turtacn/KnotWeave/pkg/types/knot"
)

const knotArgHelp = `KNOT is either an attribute vector or a braid word:

  person=0.9,0.9,0.1    project an entity of the given type
  2:1,1,1               the closure of a braid on 2 strands`

// NewBuildCmd creates the build command.
func NewBuildCmd() *cobra.Command {
	var entityID string

	cmd := &cobra.Command{
		Use:   "build KNOT",
		Short: "Build a knot and print its invariants",
		Long:  "Build a knot from an entity attribute vector or a braid word.\n\n" + knotArgHelp,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEngine(cmd, func(ctx context.Context, cliCtx *CLIContext) error {
				return runBuild(ctx, cmd, cliCtx, args[0], entityID)
			})
		},
	}
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity identifier for attribute input (default: generated)")
	return cmd
}

func runBuild(ctx context.Context, cmd *cobra.Command, cliCtx *CLIContext, spec, entityID string) error {
	in, err := parseKnotSpec(spec)
	if err != nil {
		return err
	}
	if in.Braid != nil {
		k, err := matching.ResolveKnot(ctx, cliCtx.Service, in)
		if err != nil {
			return err
		}
		return PrintResult(cmd, knotOutput(matching.ToKnotDTO(k)))
	}

	et, err := common.ParseEntityType(in.EntityType)
	if err != nil {
		return errors.InvalidEntityType(err.Error())
	}
	cliCtx.Logger.Debug("building entity knot",
		logging.String("entity_type", et.String()),
		logging.Int("attributes", len(in.Attributes)))
	rec, err := cliCtx.Service.BuildRecord(ctx, entityID, in.Attributes, et)
	if err != nil {
		return err
	}
	return PrintResult(cmd, recordOutput(matching.ToRecordDTO(rec)))
}

type evolveOptions struct {
	perturbation dto.Perturbation
	seed         int64
	steps        int
}

// NewEvolveCmd creates the evolve command.
func NewEvolveCmd() *cobra.Command {
	opts := &evolveOptions{}

	cmd := &cobra.Command{
		Use:   "evolve KNOT",
		Short: "Evolve a knot under a mood/energy/stress perturbation",
		Long: "Apply seeded braid rewrites driven by a perturbation vector with components\n" +
			"in [-1, 1].  The same seed always yields the same successor.\n\n" + knotArgHelp,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEngine(cmd, func(ctx context.Context, cliCtx *CLIContext) error {
				return runEvolve(ctx, cmd, cliCtx, args[0], opts)
			})
		},
	}
	f := cmd.Flags()
	f.Float64Var(&opts.perturbation.Mood, "mood", 0, "mood component in [-1, 1]")
	f.Float64Var(&opts.perturbation.Energy, "energy", 0, "energy component in [-1, 1]")
	f.Float64Var(&opts.perturbation.Stress, "stress", 0, "stress component in [-1, 1]")
	f.Int64Var(&opts.seed, "seed", 1, "random seed (0 behaves as 1)")
	f.IntVar(&opts.steps, "steps", 1, "number of evolution steps (0-1000)")
	return cmd
}

func runEvolve(ctx context.Context, cmd *cobra.Command, cliCtx *CLIContext, spec string, opts *evolveOptions) error {
	if opts.steps < 0 || opts.steps > 1000 {
		return errors.InvalidParam("steps must be between 0 and 1000").WithDetailf("steps=%d", opts.steps)
	}
	in, err := parseKnotSpec(spec)
	if err != nil {
		return err
	}
	k, err := matching.ResolveKnot(ctx, cliCtx.Service, in)
	if err != nil {
		return err
	}
	out, err := cliCtx.Service.EvolveKnotSteps(ctx, k, matching.ToPerturbation(opts.perturbation), opts.seed, opts.steps)
	if err != nil {
		return err
	}
	cliCtx.Logger.Debug("knot evolved",
		logging.String("from", k.Fingerprint()),
		logging.String("to", out.Fingerprint()),
		logging.Int("steps", opts.steps))
	return PrintResult(cmd, knotOutput(matching.ToKnotDTO(out)))
}

// NewStabilityCmd creates the stability command.
func NewStabilityCmd() *cobra.Command {
	var temperature float64

	cmd := &cobra.Command{
		Use:   "stability KNOT",
		Short: "Evaluate a knot's thermodynamic stability",
		Long: "Evaluate energy, entropy, free energy and stability of a knot at a\n" +
			"temperature (default: the engine temperature).\n\n" + knotArgHelp,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEngine(cmd, func(ctx context.Context, cliCtx *CLIContext) error {
				t := cliCtx.Service.Temperature()
				if cmd.Flags().Changed("temperature") {
					t = temperature
				}
				return runStability(ctx, cmd, cliCtx, args[0], t)
			})
		},
	}
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "evaluation temperature (must be positive)")
	return cmd
}

func runStability(ctx context.Context, cmd *cobra.Command, cliCtx *CLIContext, spec string, temperature float64) error {
	in, err := parseKnotSpec(spec)
	if err != nil {
		return err
	}
	k, err := matching.ResolveKnot(ctx, cliCtx.Service, in)
	if err != nil {
		return err
	}
	ens, err := cliCtx.Service.StabilityAt(ctx, k, temperature)
	if err != nil {
		return err
	}
	return PrintResult(cmd, stabilityOutput(matching.ToStabilityDTO(k, temperature, ens)))
}
