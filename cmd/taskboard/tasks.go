package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/ui/tasklist"
)

var tasksUser string

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Browse the tasks a user can see in the terminal",
	RunE:  runTasks,
}

func init() {
	tasksCmd.Flags().StringVarP(&tasksUser, "user", "u", "", "Username to view the board as")
	_ = tasksCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
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

	ctx := context.Background()
	u, err := s.GetUserByUsername(ctx, tasksUser)
	if err != nil {
		return fmt.Errorf("user %q: %w", tasksUser, err)
	}
	actor, _, err := b.Actor(ctx, u.ID)
	if err != nil {
		return err
	}

	m := tasklist.New(b, actor, keys.DefaultKeyMap(), 80, 24)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
