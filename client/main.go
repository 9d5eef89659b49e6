package main

import (
	"flag"
	"fmt"
	"os"

	"dmchat-client/ui"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "dmchat server URL")
	flag.Parse()

	app := ui.NewApp(*serverURL)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
