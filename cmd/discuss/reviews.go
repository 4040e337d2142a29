package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	reviewsTarget target
	reviewsJSON   bool
	reviewsAll    bool
)

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "List review requests of a local repository",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		params, err := reviewsTarget.parameters()
		if err != nil {
			fatal("Invalid target", err)
		}
		params.Service = "fs"

		ctx := context.Background()
		p, err := loadPlatform(ctx)
		if err != nil {
			fatal("Failed to initialize discuss", err)
		}
		defer p.Close()

		repo, err := localRepository(ctx, p, params)
		if err != nil {
			fatal("Failed to open local repository", err)
		}
		all, err := repo.ListReviewRequests(ctx)
		if err != nil {
			fatal("Failed to list reviews", err)
		}

		var reviews []core.ReviewRequest
		for _, rr := range all {
			if reviewsAll || rr.State == core.ReviewOpen {
				reviews = append(reviews, rr)
			}
		}

		if reviewsJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(reviews); err != nil {
				fatal("Failed to encode reviews", err)
			}
			return
		}

		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeader([]string{"ID", "State", "Branch", "Title", "Created"}),
		)
		for _, rr := range reviews {
			row := []string{rr.ID, string(rr.State), rr.HeadBranch, rr.Title, rr.CreatedAt.Format("2006-01-02 15:04")}
			if err := table.Append(row); err != nil {
				fatal("Failed to render reviews", err)
			}
		}
		if err := table.Render(); err != nil {
			fatal("Failed to render reviews", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(reviewsCmd)
	reviewsTarget.register(reviewsCmd)
	reviewsCmd.Flags().BoolVar(&reviewsJSON, "json", false, "Output in JSON format")
	reviewsCmd.Flags().BoolVar(&reviewsAll, "all", false, "Include merged and closed reviews")
}
