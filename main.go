package main

import (
	"os"

	"github.com/immansha/renewcast/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
