package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account and log in",
	RunE:  runRegister,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store a session token",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the session token",
	RunE:  runLogout,
}

var renewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Extend the session token by one window",
	RunE:  runRenew,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	RunE:  runWhoami,
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change your password",
	RunE:  runPasswd,
}

var stdin = bufio.NewReader(os.Stdin)

func prompt(label string) string {
	fmt.Print(label)
	line, _ := stdin.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptPassword(label string) string {
	fmt.Print(label)
	b, _ := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	return string(b)
}

func runRegister(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	username := prompt("Username: ")
	email := prompt("Email: ")
	password := promptPassword("Password: ")
	if confirm := promptPassword("Confirm Password: "); password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	fmt.Println("🔄 Creating account...")
	if _, err := c.Register(username, email, password); err != nil {
		return err
	}

	fmt.Println("✅ Account created and logged in!")
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	username := prompt("Username: ")
	password := promptPassword("Password: ")

	fmt.Println("🔄 Logging in...")
	if err := c.Login(username, password); err != nil {
		return err
	}

	fmt.Printf("✅ Logged in as %s until %s\n", username, formatMillis(c.Session().Expires))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	if !c.IsLoggedIn() {
		fmt.Println("Not logged in.")
		return nil
	}

	if err := c.Logout(); err != nil {
		return err
	}

	fmt.Println("✅ Logged out successfully.")
	return nil
}

func runRenew(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	tok, err := c.Renew()
	if err != nil {
		return err
	}

	fmt.Printf("✅ Session extended until %s\n", formatMillis(tok.Expires))
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	u, tok, err := c.Whoami()
	if err != nil {
		return err
	}

	fmt.Printf("%s <%s>\n", u.Username, u.Email)
	fmt.Printf("  id:      %s\n", u.ID)
	fmt.Printf("  server:  %s\n", c.Session().ServerURL)
	fmt.Printf("  expires: %s\n", formatMillis(tok.Expires))
	return nil
}

func runPasswd(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	current := promptPassword("Current Password: ")
	next := promptPassword("New Password: ")
	if confirm := promptPassword("Confirm New Password: "); next != confirm {
		return fmt.Errorf("passwords do not match")
	}

	if err := c.ChangePassword(current, next); err != nil {
		return err
	}

	fmt.Println("✅ Password changed.")
	return nil
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
