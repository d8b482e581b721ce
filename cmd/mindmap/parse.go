package main

import (
	"github.com/spf13/cobra"

	"mindmap-backend/domain/services"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file|->",
		Short: "Print the normalized proposal parsed from an assistant response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			proposal := services.NewResponseParser(domainConfig()).Parse(raw)
			return printJSON(cmd.OutOrStdout(), proposal)
		},
	}
}
