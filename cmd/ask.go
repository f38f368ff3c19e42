/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question and print the JSON response",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strict, _ := cmd.Flags().GetBool("strict")

		c, err := buildComponents(cmd.Context(), cfg, nil, strict)
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := c.pipeline.Ask(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().Bool("strict", false, "fail when the answer cites an identifier that was not retrieved")
}
