package main

import (
	"fmt"
	"strings"

	discuss "github.com/eduardoboucas/jekyll-discuss"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of discuss",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("discuss version %s\n", strings.TrimSpace(discuss.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
