package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"magistodl/pkg/auth"
	errs "magistodl/pkg/errors"
	"magistodl/pkg/ui"
)

var loginEmail string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Magisto credentials",
	Long: `Manage the email/password pairs used for automatic login.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables MAGISTODL_EMAIL / MAGISTODL_PASSWORD (read-only)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store credentials for automatic login",
	Long: `Store a Magisto email and password so runs can log in without you.

The account is stored under [name], or under the email when no name is given.
Accounts that sign in with Google or Facebook cannot log in automatically;
use a persistent Chrome profile (--profile-dir) for those instead.`,
	Example: `  # Interactive login
  magistodl auth login

  # Store under a name
  magistodl auth login family --email me@example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove stored credentials",
	Long: `Remove stored credentials.

If no name is provided, you will be shown a list of stored accounts
to choose from.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with their passwords masked.`,
	RunE:  runList,
}

// switchCmd represents the auth switch command
var switchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "Make a stored account the default",
	Long: `Make a stored account the one runs use when neither --account nor
--email is given. The default is the most recently stored account.`,
	Args: cobra.ExactArgs(1),
	RunE: runSwitch,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(switchCmd)

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
}

func newCredentialManager() (*auth.Manager, error) {
	manager, err := auth.NewManager()
	if err != nil {
		return nil, errs.New(errs.ErrorTypeStorage, "failed to initialize credential manager", err)
	}
	return manager, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	out := ui.Output()

	auth.ShowLoginGuide(out)
	fmt.Fprintln(out)

	email := strings.TrimSpace(loginEmail)
	if email == "" {
		fmt.Fprint(out, "📧 Email: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(input)
	}
	if email == "" || !strings.Contains(email, "@") {
		return errs.New(errs.ErrorTypeConfig, "a valid email is required", nil)
	}

	name := email
	if len(args) > 0 {
		name = args[0]
	}

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Fprintf(out, "\n⚠️  Account '%s' already exists. Update credentials? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Fprint(out, "🔐 Password (hidden): ")
	password, err := readPassword()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return errs.New(errs.ErrorTypeConfig, "password is required", nil)
	}

	account := &auth.Account{Name: name, Email: email, Password: password}
	if err := manager.Store(account); err != nil {
		return errs.New(errs.ErrorTypeStorage, "failed to store credentials", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", name))
	fmt.Fprintln(out, "\n📖 Next:")
	fmt.Fprintln(out, "   $ magistodl run")
	if name != email {
		fmt.Fprintf(out, "   $ magistodl run --account %s\n", name)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return err
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	} else {
		accounts, err := manager.List()
		if err != nil || len(accounts) == 0 {
			ui.PrintWarning("No stored accounts found")
			return nil
		}

		reader := bufio.NewReader(os.Stdin)
		fmt.Fprintln(ui.Output(), "Select account to remove:")
		for i, account := range accounts {
			fmt.Fprintf(ui.Output(), "  %d. %s (%s)\n", i+1, account.Key(), account.Email)
		}
		fmt.Fprintf(ui.Output(), "  0. Cancel\n\nChoice: ")
		input, _ := reader.ReadString('\n')

		var choice int
		fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)
		if choice == 0 {
			return nil
		}
		if choice < 0 || choice > len(accounts) {
			return errs.New(errs.ErrorTypeConfig, "invalid choice", nil)
		}
		name = accounts[choice-1].Key()
	}

	if err := manager.Delete(name); err != nil {
		return errs.New(errs.ErrorTypeStorage, "failed to remove account", err)
	}
	ui.PrintSuccess("Account removed: " + name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return err
	}

	accounts, err := manager.List()
	if err != nil {
		return errs.New(errs.ErrorTypeStorage, "failed to list accounts", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'magistodl auth login' to add an account")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	out := ui.Output()
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Fprintf(out, "%d. %s\n", i+1, sanitized.Key())
		fmt.Fprintf(out, "   Email: %s\n", sanitized.Email)
		fmt.Fprintf(out, "   Password: %s\n", sanitized.Password)
		fmt.Fprintf(out, "   Last Modified: %s\n\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runSwitch(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return err
	}

	account, err := manager.Retrieve(args[0])
	if err != nil {
		return errs.New(errs.ErrorTypeConfig, "account not found", err)
	}
	// Re-storing bumps LastModified, which makes it the default
	if err := manager.Store(account); err != nil {
		return errs.New(errs.ErrorTypeStorage, "failed to update account", err)
	}
	ui.PrintSuccess("Default account: " + account.Key())
	return nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readPassword reads a password from stdin without echoing
func readPassword() (string, error) {
	if isTerminal() {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(ui.Output())
		if err == nil {
			return string(password), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
