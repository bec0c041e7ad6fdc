package main

import (
	"fmt"
	"os"

	"github.com/spherical/redact-edge/cmd/redact-edge/commands"
)

var (
	version = "0.1.0"
)

func main() {
	if err := commands.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
