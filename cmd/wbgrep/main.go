package main

import (
	"os"

	"github.com/wb200/wbgrep/cmd/wbgrep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
