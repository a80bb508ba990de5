// Package main is the entry point for the JuMan vault CLI.
package main

import (
	"os"

	"github.com/Khoirul-Yardan/JUMANV4/cmd/juman/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
