package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/roomchat/internal/client"
	"github.com/matheus3301/roomchat/internal/tui"
	"github.com/matheus3301/roomchat/internal/tui/model"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	// Logs only go to the file; stderr belongs to the terminal UI.
	c, err := client.Load(*profileFlag, "roomchat-tui", false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Logger.Sync() }()

	vm := model.NewViewModel(c.API, c.Registry, c.Logger)
	app := tui.NewApp(vm, tui.Options{
		Profile:  c.Profile,
		UserID:   c.Config.UserID,
		Username: c.Config.Username,
		Room:     flag.Arg(0),
	}, c.Logger)

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
