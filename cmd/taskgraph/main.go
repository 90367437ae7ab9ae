package main

import (
	"fmt"
	"os"

	"github.com/jra3/taskgraph/cmd/taskgraph/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
