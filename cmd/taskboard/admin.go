package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/sync"
	"github.com/nhle/taskboard/internal/theme"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE:  runMigrate,
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create a manager account",
	RunE:  runBootstrap,
}

var employeesCmd = &cobra.Command{
	Use:   "employees",
	Short: "Show the employee roster with task counts",
	RunE:  runEmployees,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Record overdue notifications and purge expired sessions once",
	RunE:  runSweep,
}

var bootstrapForm board.EmployeeForm
var bootstrapPassword string

func init() {
	f := bootstrapCmd.Flags()
	f.StringVar(&bootstrapForm.Username, "username", "", "Login name")
	f.StringVar(&bootstrapForm.FirstName, "first-name", "", "First name")
	f.StringVar(&bootstrapForm.LastName, "last-name", "", "Last name")
	f.StringVar(&bootstrapForm.Email, "email", "", "E-mail address")
	f.StringVar(&bootstrapPassword, "password", "", "Password (prompted when empty)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	v, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	fmt.Println(theme.SuccessStyle.Render(fmt.Sprintf("Schema version %d at %s", v, cfg.Database.Path)))
	return nil
}

// promptManager fills in whatever the flags left empty.
func promptManager(form *board.EmployeeForm, password *string) error {
	var fields []huh.Field
	if form.Username == "" {
		fields = append(fields, huh.NewInput().
			Title("Логин").
			Value(&form.Username).
			Validate(required("Логин")))
		fields = append(fields,
			huh.NewInput().Title("Имя").Value(&form.FirstName),
			huh.NewInput().Title("Фамилия").Value(&form.LastName),
			huh.NewInput().Title("Email").Value(&form.Email),
		)
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().
			Title("Пароль").
			EchoMode(huh.EchoModePassword).
			Value(password).
			Validate(required("Пароль")))
	}
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...)).Run()
}

func required(name string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := promptManager(&bootstrapForm, &bootstrapPassword); err != nil {
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

	u, err := b.CreateManager(context.Background(), bootstrapForm, bootstrapPassword)
	var ve board.ValidationErrors
	if errors.As(err, &ve) {
		return fmt.Errorf("invalid manager: %s", ve.Error())
	}
	if err != nil {
		return err
	}
	fmt.Println(theme.SuccessStyle.Render(fmt.Sprintf("Manager %s created (id %d)", u.Username, u.ID)))
	return nil
}

func runEmployees(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.GetEmployeeStats(context.Background(), time.Now())
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Println(theme.HelpStyle.Render("No employees yet."))
		return nil
	}
	fmt.Println(theme.HeaderStyle.Render("Сотрудники"))
	fmt.Println(theme.RosterTable(stats))
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
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

	st := sync.New(b, cfg.Sweep.Schedule).RunNow(context.Background())
	if st.Error != nil {
		return st.Error
	}
	fmt.Println(theme.SuccessStyle.Render(fmt.Sprintf("Overdue notifications: %d, expired sessions removed: %d", st.Created, st.Purged)))
	return nil
}
