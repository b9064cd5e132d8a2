package main

import (
	"fmt"

	"github.com/spf13/cobra"

	itemapprove "github.com/Yuexixi123/ItemApprove-sub001"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), itemapprove.GetVersion())
	},
}
