package main

import (
	"os"

	sketchtablecmder "github.com/papercomputeco/sketchtable/cmd/sketchtable"
)

func main() {
	cmd := sketchtablecmder.NewSketchtableCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
