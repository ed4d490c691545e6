package main

import (
	"os"

	"github.com/DataDog/supply-chain-firewall/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
