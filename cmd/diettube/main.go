// Package main is the entry point for the diettube application.
package main

import (
	"os"

	"github.com/diettube/diettube/cmd/diettube/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
