package main

import (
	"os"

	"github.com/dmitrijs2005/exposurekeys/internal/client/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
