package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/turtacn/KnotWeave/internal/application/matching"
	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KnotWeave/pkg/errors"
)

// NewCompatCmd creates the compat command.
func NewCompatCmd() *cobra.Command {
	var quantum float64

	cmd := &cobra.Command{
		Use:   "compat KNOT KNOT",
		Short: "Score the compatibility of two knots",
		Long: "Blend an externally supplied quantum score with the topological\n" +
			"similarity of two knots.\n\n" + knotArgHelp,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEngine(cmd, func(ctx context.Context, cliCtx *CLIContext) error {
				return runCompat(ctx, cmd, cliCtx, args, quantum)
			})
		},
	}
	cmd.Flags().Float64VarP(&quantum, "quantum", "q", 0, "quantum compatibility score in [0, 1]")
	_ = cmd.MarkFlagRequired("quantum")
	return cmd
}

func runCompat(ctx context.Context, cmd *cobra.Command, cliCtx *CLIContext, specs []string, quantum float64) error {
	inputs, err := parseKnotSpecs(specs)
	if err != nil {
		return err
	}
	knots, err := matching.ResolveKnots(ctx, cliCtx.Service, inputs)
	if err != nil {
		return err
	}
	res, err := cliCtx.Service.Compatibility(ctx, knots[0], knots[1], quantum)
	if err != nil {
		return err
	}
	return PrintResult(cmd, resultOutput(matching.ToResultDTO(res)))
}

// NewWeaveCmd creates the weave command.
func NewWeaveCmd() *cobra.Command {
	var quantum string

	cmd := &cobra.Command{
		Use:   "weave KNOT KNOT KNOT...",
		Short: "Score the joint compatibility of three or more knots",
		Long: "Score a group of knots.  --quantum lists one score per pair i<j in\n" +
			"lexicographic order, so four knots need six scores.\n\n" + knotArgHelp,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEngine(cmd, func(ctx context.Context, cliCtx *CLIContext) error {
				return runWeave(ctx, cmd, cliCtx, args, quantum)
			})
		},
	}
	cmd.Flags().StringVarP(&quantum, "quantum", "q", "", "comma-separated pairwise quantum scores")
	_ = cmd.MarkFlagRequired("quantum")
	return cmd
}

func runWeave(ctx context.Context, cmd *cobra.Command, cliCtx *CLIContext, specs []string, quantum string) error {
	scores, err := parseFloats(quantum)
	if err != nil {
		return errors.InvalidParam("quantum scores are not numbers").WithDetail(err.Error())
	}
	inputs, err := parseKnotSpecs(specs)
	if err != nil {
		return err
	}
	knots, err := matching.ResolveKnots(ctx, cliCtx.Service, inputs)
	if err != nil {
		return err
	}
	res, err := cliCtx.Service.WeaveCompatibility(ctx, knots, scores)
	if err != nil {
		return err
	}
	cliCtx.Logger.Debug("weave scored",
		logging.Int("knots", len(knots)),
		logging.Float64("integrated", res.IntegratedScore))
	return PrintResult(cmd, resultOutput(matching.ToResultDTO(res)))
}
