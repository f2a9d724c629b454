package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/amishk599/skillpiler/internal/model"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "GitHub login for private repository analysis",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with GitHub",
	Long:  "Prints the GitHub authorization URL, then reads the URL GitHub redirected to and exchanges its code for a session.",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogin,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current login",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd, authStatusCmd, authLogoutCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	logger := newLogger(os.Stderr, debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	api, session, err := apiClient(cfg, logger)
	if err != nil {
		return err
	}
	ctx := context.Background()

	loginURL, err := api.LoginURL(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Open this URL in your browser and authorize Skill Piler:")
	color.New(color.FgCyan, color.Underline).Println(loginURL)
	fmt.Print("\nPaste the URL you were redirected to: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading redirect URL: %w", err)
	}
	code, state, err := parseRedirect(line)
	if err != nil {
		return err
	}

	token, err := api.Callback(ctx, code, state)
	if err != nil {
		return err
	}
	status, err := api.WithToken(token.AccessToken).AuthStatus(ctx)
	if err != nil {
		return err
	}
	if err := session.Login(token.AccessToken, status); err != nil {
		return err
	}

	color.New(color.FgGreen, color.Bold).Printf("✓ Logged in as %s\n", status.Username)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	logger := newLogger(os.Stderr, debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	api, session, err := apiClient(cfg, logger)
	if err != nil {
		return err
	}

	if session.Token() == "" {
		printAuthStatus(model.AuthStatus{})
		return nil
	}

	status, err := api.AuthStatus(context.Background())
	if err != nil {
		logger.Warn("could not verify session, showing stored status", "error", err)
		printAuthStatus(session.Status())
		return nil
	}
	if err := session.SetAuthStatus(status); err != nil {
		return err
	}
	printAuthStatus(status)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	logger := newLogger(os.Stderr, debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	_, session, err := apiClient(cfg, logger)
	if err != nil {
		return err
	}
	if err := session.Logout(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func printAuthStatus(s model.AuthStatus) {
	if !s.IsAuthenticated {
		color.New(color.FgYellow).Println("Not logged in.")
		return
	}
	color.New(color.FgGreen).Printf("Logged in as %s\n", s.Username)
	if len(s.Scopes) > 0 {
		fmt.Printf("Scopes: %s\n", strings.Join(s.Scopes, ", "))
	}
}

// parseRedirect extracts the OAuth code and state from a pasted callback URL.
func parseRedirect(raw string) (code, state string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parsing redirect URL: %w", err)
	}
	q := u.Query()
	code, state = q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		return "", "", errors.New("redirect URL must contain code and state parameters")
	}
	return code, state, nil
}
