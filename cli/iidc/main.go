// Package main is the iidc command itself.
package main

import (
	"fmt"
	"os"

	"go.viam.com/iidc/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "\x1b[1;31mError:\x1b[0m %v\n", err)
		os.Exit(1)
	}
}
