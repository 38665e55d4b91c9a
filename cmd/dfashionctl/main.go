package main

import (
	"os"

	"github.com/dfashion/dfashion-api/cmd/dfashionctl/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
