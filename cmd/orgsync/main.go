package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lyzr/orgsync/cmd/orgsync/cli"
)

func main() {
	ctx := context.Background()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "orgsync: %v\n", err)
		os.Exit(1)
	}
}
