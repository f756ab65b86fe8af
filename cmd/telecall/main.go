package main

import (
	"github.com/carelinkhq/telecall/internal/cli"
	"github.com/carelinkhq/telecall/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cli.Execute()
}
