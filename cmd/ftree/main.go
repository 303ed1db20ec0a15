package main

import (
	"os"

	"ftree/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
