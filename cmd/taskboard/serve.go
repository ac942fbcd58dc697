package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/taskboard/internal/sync"
	"github.com/nhle/taskboard/internal/web"
)

var addrFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server and the overdue sweeper",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addrFlag != "" {
		cfg.Server.Addr = addrFlag
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	b, closeBoard, err := newBoard(cfg, s)
	if err != nil {
		return err
	}
	defer closeBoard()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sweep.Schedule != "" {
		sw := sync.New(b, cfg.Sweep.Schedule)
		if err := sw.Start(ctx); err != nil {
			return err
		}
		defer sw.Stop()
	}

	srv, err := web.NewServer(b, web.Options{
		SecureCookies: cfg.Server.SecureCookies,
		SessionTTL:    cfg.SessionTTL(),
	})
	if err != nil {
		return fmt.Errorf("create web server: %w", err)
	}

	log.Printf("[web] database %s, mail enabled=%v", cfg.Database.Path, cfg.Mail.Enabled)
	return srv.Run(ctx, cfg.Server.Addr)
}
