// Package main is the entry point for the codingrules CLI.
//
// All logic lives in the commands package.
package main

import (
	"os"

	"github.com/JNZader/codingrules/cmd/codingrules/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
