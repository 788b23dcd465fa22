package main

import (
	"os"

	"github.com/vorinsk/isolate/cmd"
	"github.com/vorinsk/isolate/internal/fatal"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fatal.Log.Error(fatal.Errno(err))
		os.Exit(1)
	}
}
