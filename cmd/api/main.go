package main

import (
	"os"

	"github.com/kolo-save/kolo/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
