package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"igarchive/pkg/auth"
	"igarchive/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored account credentials",
	Long: `Manage stored Instagram credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only, for headless runs)

Never share your credentials or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store account credentials securely",
	Long: `Store account credentials in the system keychain or encrypted file
so future runs can log in without prompting.`,
	Example: `  # Interactive login
  igarchive auth login

  # Login with username
  igarchive auth login myaccount`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	Run:   runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		username, err = promptLine("Username")
		if err != nil || username == "" {
			ui.PrintError("Username is required")
			os.Exit(1)
		}
	}

	password, err := terminalPrompter{}.Password(username)
	if err != nil || password == "" {
		ui.PrintError("Password is required")
		os.Exit(1)
	}

	if err := manager.Store(&auth.Account{Username: username, Password: password}); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Credentials stored for %s", username))
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	username := args[0]
	if err := manager.Delete(username); err != nil {
		ui.PrintError("Failed to remove credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Credentials removed for %s", username))
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		os.Exit(1)
	}

	if len(accounts) == 0 {
		ui.PrintWarning("No stored accounts")
		return
	}

	for _, account := range accounts {
		safe := auth.SanitizeAccount(account)
		ui.PrintInfo(safe.Username, fmt.Sprintf("password %s, updated %s",
			safe.Password, safe.LastModified.Format("2006-01-02 15:04")))
	}
}
