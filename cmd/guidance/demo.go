package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/guidance"
	"github.com/aretw0/guidance/internal/cli"
	"github.com/aretw0/guidance/internal/presentation/tui"
)

var demoCmd = &cobra.Command{
	Use:   "demo [pizza|triage]",
	Short: "Try a workflow in the terminal",
	Long: `Runs a workflow locally with an in-memory store.

  pizza   take an order interactively (type exit to leave)
  triage  replay a scripted triage scenario (--scenario emergency|minor)`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"pizza", "triage"},
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		engine, err := guidance.New(guidance.WithLogger(logger))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		variant := "pizza"
		if len(args) > 0 {
			variant = args[0]
		}
		out := cmd.OutOrStdout()
		interactive := tui.IsInteractive(os.Stdin) && tui.IsInteractive(os.Stdout)
		if interactive {
			tui.PrintBanner(out, strings.TrimSpace(guidance.Version))
		}

		switch variant {
		case "pizza":
			_, err = cli.RunPizzaDemo(ctx, engine, cmd.InOrStdin(), out, interactive)
		case "triage":
			scenario, _ := cmd.Flags().GetString("scenario")
			_, err = cli.RunTriageScenario(ctx, engine, scenario, out)
		default:
			err = fmt.Errorf("unknown demo %q (available: pizza, triage)", variant)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().String("scenario", "emergency", "Triage scenario: "+strings.Join(cli.ScenarioNames(), ", "))
}
