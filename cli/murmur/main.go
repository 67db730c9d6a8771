package main

import (
	"os"

	murmurcmder "github.com/papercomputeco/murmur/cmd/murmur"
)

func main() {
	cmd := murmurcmder.NewMurmurCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
