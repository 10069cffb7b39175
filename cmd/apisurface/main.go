package main

import (
	"os"

	"apisurface/internal/cliapp"
)

func main() {
	os.Exit(cliapp.Run(os.Args[1:]))
}
