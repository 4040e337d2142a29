package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt <value>",
	Short: "Encrypt a value for a site configuration",
	Long: `Seal a value (e.g. the reCaptcha secret) with secrets.key so it can be
committed to a public discuss.yml.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		p, err := loadPlatform(context.Background())
		if err != nil {
			fatal("Failed to initialize discuss", err)
		}
		defer p.Close()

		if p.Secrets == nil {
			fatal("Cannot encrypt", errors.New("secrets.key is not configured"))
		}
		out, err := p.Secrets.Encrypt(args[0])
		if err != nil {
			fatal("Failed to encrypt", err)
		}
		fmt.Println(out)
	},
}

func init() {
	rootCmd.AddCommand(encryptCmd)
}
