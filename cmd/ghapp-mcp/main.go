package main

import (
	"fmt"
	"os"
)

var (
	version   = ""
	gitCommit = ""
	buildTime = ""
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}
