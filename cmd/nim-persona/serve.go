package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/becomeliminal/nim-persona/character"
	"github.com/becomeliminal/nim-persona/config"
	"github.com/becomeliminal/nim-persona/journal"
	"github.com/becomeliminal/nim-persona/rpc"
	"github.com/becomeliminal/nim-persona/server"
	"github.com/becomeliminal/nim-persona/session"
)

const shutdownTimeout = 10 * time.Second

func runServe(ctx context.Context, cfg config.Config, char *character.File) error {
	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		return err
	}
	embedder, release, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	// ============================================================================
	// SESSIONS
	// ============================================================================
	var opts []session.RegistryOption
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, session.WithJournal(j))

		ids, err := j.Sessions(ctx)
		if err != nil {
			return err
		}
		log.Printf("✅ Journal at %s (%d resumable sessions)", cfg.JournalPath, len(ids))
	}

	registry := session.NewRegistry(func(ctx context.Context, id string) (session.Bot, error) {
		return newBot(ctx, cfg, char, completer, embedder, id)
	}, opts...)
	defer registry.Shutdown()

	// ============================================================================
	// HTTP + WEBSOCKET
	// ============================================================================
	srv, err := server.New(server.Config{
		Registry:       registry,
		Character:      char.Definition(),
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}

	// ============================================================================
	// GRPC
	// ============================================================================
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	grpcSrv := rpc.NewServer(rpc.NewService(registry, cfg.RequestTimeout))

	errCh := make(chan error, 2)
	go func() {
		log.Printf("🚀 gRPC listening on :%d", cfg.GRPCPort)
		errCh <- grpcSrv.Serve(lis)
	}()
	go func() {
		log.Printf("🚀 HTTP listening on :%d (WebSocket at /ws)", cfg.Port)
		errCh <- srv.Run(fmt.Sprintf(":%d", cfg.Port))
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutting down...")
	case err = <-errCh:
		if err != nil {
			err = fmt.Errorf("server stopped: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && !errors.Is(serr, context.Canceled) {
		log.Printf("HTTP shutdown: %v", serr)
	}
	grpcSrv.GracefulStop()
	return err
}
