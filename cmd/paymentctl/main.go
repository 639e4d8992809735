package main

import (
	"fmt"
	"os"

	"payment-service/internal/cli"
	"payment-service/internal/util"
)

func main() {
	err := cli.NewRootCommand().Execute()
	util.SyncLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
