package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sdheenr/Auto-Insta/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored credentials",
	Long: `Manage stored credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only)

Stored credentials supplement the sessions file used for rotation.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store a credential securely",
	Long: `Store a credential securely in the system keychain or encrypted file.

You will be prompted for:
  - Username (if not provided)
  - Session ID (hidden input)
  - CSRF token (optional)`,
	Example: `  # Interactive login
  autoinsta auth login

  # Login with username
  autoinsta auth login myusername`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove a stored credential",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials",
	Long:  `List all stored credentials with session tokens masked.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	fmt.Print("Session ID: ")
	sessionBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read session ID: %w", err)
	}
	sessionID := strings.TrimSpace(string(sessionBytes))
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	fmt.Print("CSRF token (optional): ")
	csrfLine, err := reader.ReadString('\n')
	if err != nil {
		return err
	}

	cred := &auth.Credential{
		Username:  username,
		SessionID: sessionID,
		CSRFToken: strings.TrimSpace(csrfLine),
	}
	if err := manager.Store(cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	fmt.Printf("Credential for %s stored.\n", username)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("Credential for %s removed.\n", args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		fmt.Println("No stored credentials.")
		return nil
	}

	fmt.Printf("%-24s %-20s %s\n", "USERNAME", "SESSION", "MODIFIED")
	for _, cred := range creds {
		safe := auth.Sanitize(cred)
		modified := ""
		if !cred.LastModified.IsZero() {
			modified = cred.LastModified.Format("2006-01-02 15:04")
		}
		fmt.Printf("%-24s %-20s %s\n", safe.Username, safe.SessionID, modified)
	}
	return nil
}
