package main

import (
	"fmt"
	"os"

	"gitlab.com/mediavault/vaultdb/vaultdb"
)

func main() {
	if err := vaultdb.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
