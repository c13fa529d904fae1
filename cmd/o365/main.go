package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/custodia-labs/o365-go/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cli.SetVersion(version)

	// Request logging stays quiet unless --verbose raises the level.
	log.SetLevel(log.WarnLevel)

	if err := cli.Execute(); err != nil {
		return 1
	}
	return 0
}
