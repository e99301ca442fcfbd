package main

import (
	"fmt"
	"os"

	"atomic_server/internal/cli"
)

func main() {
	if err := cli.NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "atomicid:", err)
		os.Exit(1)
	}
}
