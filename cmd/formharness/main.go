package main

import (
	"os"

	"github.com/roach88/formharness/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
