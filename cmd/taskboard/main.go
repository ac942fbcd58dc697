package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/credential"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/notify"
	"github.com/nhle/taskboard/internal/store"
	"github.com/nhle/taskboard/internal/theme"
)

// mailPasswordEnv overrides the keyring entry for the SMTP password.
const mailPasswordEnv = "TASKBOARD_MAIL_PASSWORD"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "taskboard",
	Short:         "taskboard - team task tracker with managers, employees and notifications",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", model.DefaultConfigPath(), "Path to the YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, bootstrapCmd, employeesCmd, sweepCmd, credentialCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, theme.ErrorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured database, creating its directory.
func openStore(cfg *model.AppConfig) (*store.SQLiteStore, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// Mail delivery runs in the background with a bounded backlog.
const (
	mailQueueSize    = 256
	mailSendTimeout  = 30 * time.Second
	mailDrainTimeout = 10 * time.Second
)

// newBoard wires the board for cfg. Mail delivery is attached when enabled.
// The returned func flushes pending mail and must be called before exit.
func newBoard(cfg *model.AppConfig, s store.Store) (*board.Board, func(), error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	opts := board.Options{
		Location:   loc,
		Employees:  cfg.Employees,
		PageSize:   cfg.Notifications.PageSize,
		SessionTTL: cfg.SessionTTL(),
	}

	closeBoard := func() {}
	if cfg.Mail.Enabled {
		password, err := credential.Lookup(credential.SMTPPasswordKey, mailPasswordEnv)
		if err != nil {
			return nil, nil, fmt.Errorf("read smtp password: %w", err)
		}
		q := notify.NewQueue(notify.NewMailer(cfg.Mail, password), mailQueueSize, mailSendTimeout)
		opts.Deliverer = q
		closeBoard = func() {
			ctx, cancel := context.WithTimeout(context.Background(), mailDrainTimeout)
			defer cancel()
			if err := q.Close(ctx); err != nil {
				log.Printf("[notify] %v", err)
			}
		}
	}

	return board.New(s, opts), closeBoard, nil
}
