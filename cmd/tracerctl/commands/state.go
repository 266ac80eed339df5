package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func stateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect individual states",
	}

	cmd.AddCommand(stateShowCmd())
	cmd.AddCommand(stateDumpCmd())
	cmd.AddCommand(stateInjectCmd())

	return cmd
}

func stateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a single state's summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("parse state id %q: %w", args[0], err)
			}

			st, err := apiClient.GetState(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get state: %w", err)
			}

			out, err := formatState(st, outputFormat)
			if err != nil {
				return fmt.Errorf("format state: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

func stateDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <id>",
		Short: "Print a full debug dump of a state's queue and routing snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("parse state id %q: %w", args[0], err)
			}

			dump, err := apiClient.StateDump(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("dump state: %w", err)
			}

			fmt.Print(dump)

			return nil
		},
	}
}

func stateInjectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inject <id>",
		Short: "Write a state's queue and routing snapshot back into the running simulator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("parse state id %q: %w", args[0], err)
			}

			if err := apiClient.InjectState(cmd.Context(), id); err != nil {
				return fmt.Errorf("inject state: %w", err)
			}

			fmt.Printf("state %d injected\n", id)

			return nil
		},
	}
}
