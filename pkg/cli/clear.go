package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var clearForce bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every recorded request",
	Long: `Delete every recorded request and persist the empty log.

Asks for confirmation when run from a terminal. Use --force in scripts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, _, _, err := openRecorder(cmd)
		if err != nil {
			return err
		}
		defer rec.Close()

		count := len(rec.Records())
		if !clearForce {
			if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
				return errors.New("refusing to clear without confirmation; use --force")
			}
			confirmed := false
			err := huh.NewConfirm().
				Title(fmt.Sprintf("Delete %d recorded request(s)?", count)).
				Affirmative("Delete").
				Negative("Cancel").
				Value(&confirmed).
				Run()
			if err != nil {
				return fmt.Errorf("confirmation failed: %w", err)
			}
			if !confirmed {
				fmt.Fprintln(cmd.ErrOrStderr(), "Aborted")
				return nil
			}
		}

		if err := rec.Clear(); err != nil {
			return fmt.Errorf("failed to clear requests: %w", err)
		}

		out := cmd.OutOrStdout()
		return printResult(out, map[string]int{"cleared": count}, func() {
			fmt.Fprintf(out, "Cleared %d request(s)\n", count)
		})
	},
}

func init() {
	clearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(clearCmd)
}
