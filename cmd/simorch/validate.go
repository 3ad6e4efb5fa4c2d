package main

import (
	"fmt"
	"strings"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"github.com/aescanero/simorch/internal/demo"
	"github.com/aescanero/simorch/internal/scenario"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var validateCmd = &cobra.Command{
	Use:   "validate <scenario>",
	Short: "Check a scenario file and print its execution plan",
	Long: `Parse a scenario, build every model it declares and resolve the
dependency graph without initializing any model.

Examples:
  simorch validate scenarios/crosswind.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := scenario.Load(args[0])
		if err != nil {
			return err
		}

		orch := orchestrator.New(orchestrator.Options{}, zap.NewNop())
		defer orch.Dispose()

		if err := sc.Apply(orch, demo.NewFactory()); err != nil {
			return err
		}
		graph, err := orch.Plan()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		name := sc.Name
		if name == "" {
			name = args[0]
		}
		fmt.Fprintf(out, "scenario %s: %d models, %d levels, time step %s\n",
			name, len(sc.Models), graph.Len(), sc.SimulationContext(nil).TimeStep)
		for i, level := range graph.LevelIDs() {
			fmt.Fprintf(out, "  level %d: %s\n", i, strings.Join(level, ", "))
		}
		return nil
	},
}
