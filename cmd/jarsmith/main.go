package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/smarty/jarsmith/contracts"
	"github.com/smarty/jarsmith/core"
	"github.com/smarty/jarsmith/shell"
)

func main() {
	log.SetFlags(log.Ltime | log.Lshortfile)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	name := os.Args[1]
	command, found := commands[name]
	if name == "version" {
		fmt.Printf("jarsmith [%s]\n", ldflagsSoftwareVersion)
		return
	}
	if !found {
		usage()
		os.Exit(2)
	}

	loader := core.NewConfigLoader(shell.NewDiskFileSystem(), shell.NewEnvironment(), os.Stderr)
	config, err := loader.LoadConfig(name, os.Args[2:])
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := NewApp(config, shell.NewStaticSettings(config), shell.NewTerminalProgressSink(os.Stderr))
	if err != nil {
		log.Fatal(err)
	}
	err = command(app, ctx, config)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, contracts.UserMessage(err))
		os.Exit(1)
	}
}

var commands = map[string]func(*App, context.Context, contracts.Config) error{
	"versions":  (*App).Versions,
	"update":    (*App).Update,
	"downgrade": (*App).Downgrade,
	"rebuild":   (*App).Rebuild,
	"ensure":    (*App).Ensure,
}

func usage() {
	_, _ = fmt.Fprintln(os.Stderr, `Usage: jarsmith <command> --root <instance directory> [flags] [version]

  versions            List installable versions (--force reloads the listings).
  update [version]    Download the base archive (default: cached, else LatestStable).
  downgrade <version> Patch the installed version down to an older one.
  rebuild             Merge the instance's overlays into the base archive.
  ensure [version]    update (or downgrade) and then rebuild when needed.
  version             Print the jarsmith version.

Run "jarsmith <command> --help" for the flags of a command.`)
}

var ldflagsSoftwareVersion = "debug"
