package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/taskboard/internal/credential"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage secrets kept in the system keyring",
}

var credentialSetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Store a secret (prompted without echo)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialSet,
}

var credentialDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a secret",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialDelete,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	RunE:  runConfigInit,
}

func init() {
	credentialCmd.AddCommand(credentialSetCmd, credentialDeleteCmd)
	configCmd.AddCommand(configInitCmd)
}

func checkKey(key string) error {
	if !credential.Known(key) {
		return fmt.Errorf("unknown credential %q (known: %s)", key, strings.Join(credential.Keys, ", "))
	}
	return nil
}

func runCredentialSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if err := checkKey(key); err != nil {
		return err
	}

	var value string
	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(key).
			EchoMode(huh.EchoModePassword).
			Value(&value).
			Validate(required(key)),
	)).Run()
	if err != nil {
		return err
	}

	if err := credential.Set(key, value); err != nil {
		return err
	}
	fmt.Println(theme.SuccessStyle.Render("Stored " + key))
	return nil
}

func runCredentialDelete(cmd *cobra.Command, args []string) error {
	key := args[0]
	if err := checkKey(key); err != nil {
		return err
	}
	if err := credential.Delete(key); err != nil {
		return err
	}
	fmt.Println(theme.SuccessStyle.Render("Removed " + key))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil {
		fmt.Println(theme.HelpStyle.Render("Config already exists: " + configPath))
		return nil
	}
	if err := model.SaveConfig(configPath, model.DefaultAppConfig()); err != nil {
		return err
	}
	fmt.Println(theme.SuccessStyle.Render("Created config: " + configPath))
	return nil
}
