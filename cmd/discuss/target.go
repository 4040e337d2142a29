package main

import (
	"fmt"
	"strings"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
	"github.com/spf13/cobra"
)

// target holds the flags that address a repository.
type target struct {
	service  string
	repo     string
	branch   string
	property string
}

func (t *target) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.service, "service", "", "Host service (github, gitlab, fs); default gateway.adapter")
	cmd.Flags().StringVar(&t.repo, "repo", "", "Repository as owner/name")
	cmd.Flags().StringVar(&t.branch, "branch", "main", "Target branch")
	cmd.Flags().StringVar(&t.property, "property", "comments", "Site configuration block")
	cmd.MarkFlagRequired("repo")
}

func (t *target) parameters() (core.Parameters, error) {
	owner, name, ok := strings.Cut(t.repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return core.Parameters{}, fmt.Errorf("--repo must be owner/name, got %q", t.repo)
	}
	return core.Parameters{
		Service:    t.service,
		Username:   owner,
		Repository: name,
		Branch:     t.branch,
		Property:   t.property,
		Version:    "1",
	}, nil
}
