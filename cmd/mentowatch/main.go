package main

import (
	"fmt"
	"os"

	"github.com/lamassu-labs/mentowatch/cmd/mentowatch/commands"
	"github.com/lamassu-labs/mentowatch/logger"
)

func main() {
	defer logger.Cleanup()

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
