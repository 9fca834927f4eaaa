package main

import (
	"os"

	"github.com/kingrea/crosspost/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
