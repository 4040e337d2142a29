package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/eduardoboucas/jekyll-discuss/pkg/core"
)

func main() {
	Execute()
}

// fatal prints msg and err and exits. Pipeline failures also list their codes
// so scripts can match on them.
func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	if codes := core.Codes(err); len(codes) > 0 {
		fmt.Fprintf(os.Stderr, "codes: %s\n", strings.Join(codes, ","))
	}
	os.Exit(1)
}
