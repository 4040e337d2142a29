// Package discuss is the composition root of discuss, a service that turns
// form submissions into commits.
//
// A static site posts a comment (or any form entry) to discuss. discuss reads
// the site's discuss.yml from the target repository, authorizes the request,
// validates and transforms the fields, serializes them as JSON, YAML or
// frontmatter and commits the file, either directly or through a pull/merge
// request that a human approves.
//
// Architecture:
//
//   - pkg/core holds the domain types and the ports (Gateway, SpamChecker,
//     Notifier, Decrypter).
//   - pkg/entry is the pipeline. It depends on ports only.
//   - pkg/adapters/* implement the ports: GitHub, GitLab and local git
//     repositories, Akismet, reCAPTCHA and Redis.
//   - internal/platform wires adapters from a koanf configuration.
//
// Usage:
//
//	cfg, err := discuss.LoadConfig("discuss.toml")
//	p, err := discuss.New(ctx, cfg, discuss.WithLogger(logger))
//	defer p.Close()
//
//	res, err := p.Service.Process(ctx, discuss.Request{
//		Parameters: discuss.Parameters{Username: "jane", Repository: "blog", Branch: "main", Property: "comments"},
//		Fields:     discuss.Fields{"name": "Jane", "message": "Hi"},
//	})
package discuss
