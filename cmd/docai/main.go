package main

import (
	"os"

	"github.com/oremus-labs/docai-console/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
