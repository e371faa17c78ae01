package main

import (
	"os"

	"github.com/hireloop/portalchat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
