package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/curlgrab/internal/command"
	"github.com/rohmanhakim/curlgrab/internal/logging"
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Print the request reconstructed from a captured command.",
	Long: `translate parses the captured command without sending anything and
prints the reconstructed URL, query parameters and headers as JSON.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := InitConfigWithError()
		if err != nil {
			return err
		}
		ctx := logging.WithContext(cmd.Context(), newLogger(cfg, cmd.ErrOrStderr()))

		captured, err := readCommand(cmd.InOrStdin())
		if err != nil {
			return err
		}

		parsed := command.NewCmdTranslator().Translate(ctx, captured)
		encoded, err := json.MarshalIndent(parsed, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

		if !parsed.Usable() {
			return fmt.Errorf("cannot parse URL from command")
		}
		return nil
	},
}
