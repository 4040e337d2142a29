package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/eduardoboucas/jekyll-discuss/pkg/entry"
	"github.com/spf13/cobra"
)

var (
	submitTarget  target
	submitFields  []string
	submitOptions []string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Process one entry from the command line",
	Long: `Run a submission through the same pipeline the HTTP API uses.

  discuss submit --repo jane/blog -f name=Jane -f message="Hi there" -o parent=abc`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		params, err := submitTarget.parameters()
		if err != nil {
			fatal("Invalid target", err)
		}
		fields, err := parsePairs(submitFields)
		if err != nil {
			fatal("Invalid field", err)
		}
		options, err := parsePairs(submitOptions)
		if err != nil {
			fatal("Invalid option", err)
		}

		ctx := context.Background()
		p, err := loadPlatform(ctx)
		if err != nil {
			fatal("Failed to initialize discuss", err)
		}
		defer p.Close()

		res, err := p.Service.Process(ctx, entry.Request{
			Parameters: params,
			Fields:     core.Fields(fields),
			Options:    core.Options(options),
			Requester:  core.Requester{UserAgent: "discuss-cli"},
		})
		if err != nil {
			fatal("Entry rejected", err)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(res); err != nil {
			fatal("Failed to encode result", err)
		}
	},
}

// parsePairs turns key=value flags into a map.
func parsePairs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		out[k] = v
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitTarget.register(submitCmd)
	submitCmd.Flags().StringArrayVarP(&submitFields, "field", "f", nil, "Entry field as name=value (repeatable)")
	submitCmd.Flags().StringArrayVarP(&submitOptions, "option", "o", nil, "Entry option as name=value (repeatable)")
}
