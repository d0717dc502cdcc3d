package main

import (
	"os"

	"github.com/pscheid92/wallpaperpicker/cmd/wallpaperctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
