// nim-persona chats with a roleplay character in the terminal, or serves the
// character over HTTP, WebSocket and gRPC.
//
// Usage:
//
//	nim-persona chat   [-character file] [-env file]
//	nim-persona serve  [-character file] [-env file]
//	nim-persona schema
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/becomeliminal/nim-persona/character"
	"github.com/becomeliminal/nim-persona/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd := os.Args[1]; cmd {
	case "chat":
		err = runWithConfig(ctx, cmd, os.Args[2:], runChat)
	case "serve":
		err = runWithConfig(ctx, cmd, os.Args[2:], runServe)
	case "schema":
		err = runSchema()
	case "-h", "-help", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: nim-persona <command> [flags]

Commands:
  chat     talk to the character in the terminal
  serve    serve the character over HTTP, WebSocket and gRPC
  schema   print the JSON Schema of a character file`)
}

type runFunc func(ctx context.Context, cfg config.Config, char *character.File) error

// runWithConfig parses the shared flags, loads configuration and the
// character file, and hands them to run.
func runWithConfig(ctx context.Context, name string, args []string, run runFunc) error {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	charFile := fs.String("character", "", "character file (.yaml or .json); overrides CHARACTER_FILE")
	envFile := fs.String("env", ".env", "dotenv file loaded before reading the environment")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// ============================================================================
	// CONFIGURATION
	// ============================================================================
	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	if *charFile != "" {
		cfg.CharacterFile = *charFile
	}

	char, err := character.Load(cfg.CharacterFile)
	if err != nil {
		return err
	}
	log.Printf("✅ Loaded character %q (%d rolling summaries)", char.Name, len(char.RollingSummaries))

	return run(ctx, cfg, char)
}

func runSchema() error {
	schema, err := character.Schema()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(append(schema, '\n'))
	return err
}
