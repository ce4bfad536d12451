package main

import (
	"context"
	"fmt"
	"os"

	"vcfcreds/cmd/vcfctl/commands"
)

func main() {
	app := commands.NewApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
