package main

import (
	"os"

	"github.com/rc1405/fiddler/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
