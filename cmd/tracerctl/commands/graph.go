package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Drive and inspect the state-space graph",
	}

	cmd.AddCommand(graphStartCmd())
	cmd.AddCommand(graphStepCmd())
	cmd.AddCommand(graphBuildCmd())
	cmd.AddCommand(graphListCmd())
	cmd.AddCommand(graphMarkCmd())
	cmd.AddCommand(graphCyclesCmd())

	return cmd
}

func graphStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Capture the root state from the configured scenario",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := apiClient.Start(cmd.Context())
			if err != nil {
				return fmt.Errorf("start trace: %w", err)
			}

			out, err := formatState(root, outputFormat)
			if err != nil {
				return fmt.Errorf("format state: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

func graphStepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "step <state-id> <trans-index>",
		Short: "Apply one allowed transition from a state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stateID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("parse state id %q: %w", args[0], err)
			}

			transIndex, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("parse transition index %q: %w", args[1], err)
			}

			step, err := apiClient.Step(cmd.Context(), stateID, transIndex)
			if err != nil {
				return fmt.Errorf("step: %w", err)
			}

			out, err := formatStep(step, outputFormat)
			if err != nil {
				return fmt.Errorf("format step: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

func graphBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Enumerate the whole reachable state space by repeated BFS stepping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := apiClient.WholeGraph(cmd.Context())
			if err != nil {
				return fmt.Errorf("build whole graph: %w", err)
			}

			out, err := formatWholeGraph(res, outputFormat)
			if err != nil {
				return fmt.Errorf("format whole graph result: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

func graphListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all captured states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			states, err := apiClient.ListStates(cmd.Context())
			if err != nil {
				return fmt.Errorf("list states: %w", err)
			}

			out, err := formatStates(states, outputFormat)
			if err != nil {
				return fmt.Errorf("format states: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

func graphMarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark",
		Short: "Run backward reachability and mark states that can lead to a final state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := apiClient.Mark(cmd.Context()); err != nil {
				return fmt.Errorf("mark can-lead-to-final: %w", err)
			}

			fmt.Println("ok")

			return nil
		},
	}
}

func graphCyclesCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "Detect cycles in the state-space graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all {
				cycles, err := apiClient.DetectAllCycles(cmd.Context())
				if err != nil {
					return fmt.Errorf("detect all cycles: %w", err)
				}

				for i := range cycles {
					out, err := formatCycle(&cycles[i], outputFormat)
					if err != nil {
						return fmt.Errorf("format cycle: %w", err)
					}

					fmt.Print(out)
				}

				return nil
			}

			cycle, err := apiClient.DetectOneCycle(cmd.Context())
			if err != nil {
				return fmt.Errorf("detect one cycle: %w", err)
			}

			out, err := formatCycle(cycle, outputFormat)
			if err != nil {
				return fmt.Errorf("format cycle: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "report every cycle instead of just the first one found")

	return cmd
}
