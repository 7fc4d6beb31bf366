package main

import (
	"github.com/custodia-labs/quarry-cli/internal/adapters/driving/cli"
)

func main() {
	cli.Execute()
}
