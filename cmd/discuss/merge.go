package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	discuss "github.com/eduardoboucas/jekyll-discuss"
	"github.com/eduardoboucas/jekyll-discuss/pkg/adapters/fs"
	"github.com/spf13/cobra"
)

var (
	mergeTarget target
	mergeLocal    bool
	mergeCallback bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge <review-id>",
	Short: "Handle a merged review request",
	Long: `Replay the callback of a merged review request: notify the thread and
delete the review branch.

With --local the review request of a local repository (fs adapter) is merged
first, which is how moderation works without a hosting service. Pass
--callback=false when "discuss serve --watch" already handles the merge.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		params, err := mergeTarget.parameters()
		if err != nil {
			fatal("Invalid target", err)
		}

		ctx := context.Background()
		p, err := loadPlatform(ctx)
		if err != nil {
			fatal("Failed to initialize discuss", err)
		}
		defer p.Close()

		if mergeLocal {
			params.Service = "fs"
			repo, err := localRepository(ctx, p, params)
			if err != nil {
				fatal("Failed to open local repository", err)
			}
			rr, err := repo.MergeReviewRequest(ctx, args[0])
			if err != nil {
				fatal("Failed to merge review", err)
			}
			fmt.Fprintf(os.Stderr, "Merged review #%s (%s into %s)\n", rr.ID, rr.HeadBranch, rr.BaseBranch)
			if !mergeCallback {
				return
			}
		}

		out, err := p.Service.ProcessReview(ctx, params, args[0])
		if err != nil {
			fatal("Failed to process review", err)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			fatal("Failed to encode outcome", err)
		}
	},
}

func localRepository(ctx context.Context, p *discuss.Platform, params discuss.Parameters) (*fs.Repository, error) {
	c, err := p.Router.Lookup("fs")
	if err != nil {
		return nil, err
	}
	local, ok := c.(*fs.Connector)
	if !ok {
		return nil, fmt.Errorf("service fs is not a local connector")
	}
	return local.Repository(ctx, params)
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeTarget.register(mergeCmd)
	mergeCmd.Flags().BoolVar(&mergeLocal, "local", false, "Merge the review request of a local repository first")
	mergeCmd.Flags().BoolVar(&mergeCallback, "callback", true, "Run the merge callback after a local merge")
}
