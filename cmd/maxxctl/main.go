package main

import (
	"fmt"
	"os"
)

func main() {
	app := newCLIApp(&env{out: os.Stdout})
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
