package main

import (
	"os"

	"github.com/conduit-lang/docmodel/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
