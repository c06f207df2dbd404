package main

import (
	"context"
	"io"
	"log"

	"github.com/becomeliminal/nim-persona/character"
	"github.com/becomeliminal/nim-persona/config"
	"github.com/becomeliminal/nim-persona/session"
	"github.com/becomeliminal/nim-persona/tui"
)

func runChat(ctx context.Context, cfg config.Config, char *character.File) error {
	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		return err
	}
	embedder, release, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	// The terminal owns stdout from here on.
	log.SetOutput(io.Discard)

	return tui.Run(ctx, tui.Config{
		Character: char.Definition(),
		NewBot: func(ctx context.Context) (session.Bot, error) {
			return newBot(ctx, cfg, char, completer, embedder, "")
		},
		Timeout: cfg.RequestTimeout,
	})
}
