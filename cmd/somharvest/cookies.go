package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"somharvest/pkg/auth"
	"somharvest/pkg/ui"
)

var (
	cookieValue string
	clearAll    bool
)

// cookiesCmd represents the cookies command
var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Manage stored cookie profiles",
	Long: `Manage named cookie headers used to seed a harvest that has no checkpoint.

Profiles are stored in:
  - the system keychain (when available)
  - an encrypted file protected by SOMHARVEST_PASSPHRASE
  - SOM_COOKIES / COOKIES are exposed read-only as the "env" profile

Cookies are session credentials. Never share them.`,
}

var cookiesSetCmd = &cobra.Command{
	Use:   "set [profile]",
	Short: "Store a cookie header under a profile name",
	Example: `  # Prompt for the header without echoing it
  somharvest cookies set

  # Non-interactive
  somharvest cookies set work --value "_session=abc123; cf_clearance=xyz"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCookiesSet,
}

var cookiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles with masked values",
	Args:  cobra.NoArgs,
	RunE:  runCookiesList,
}

var cookiesClearCmd = &cobra.Command{
	Use:   "clear [profile]",
	Short: "Remove a stored profile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCookiesClear,
}

var cookiesGuideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain how to copy cookies from the browser",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		auth.ShowCookieGuide()
	},
}

func init() {
	rootCmd.AddCommand(cookiesCmd)
	cookiesCmd.AddCommand(cookiesSetCmd)
	cookiesCmd.AddCommand(cookiesListCmd)
	cookiesCmd.AddCommand(cookiesClearCmd)
	cookiesCmd.AddCommand(cookiesGuideCmd)

	cookiesSetCmd.Flags().StringVar(&cookieValue, "value", "", "cookie header to store instead of prompting")
	cookiesClearCmd.Flags().BoolVar(&clearAll, "all", false, "remove every stored profile")
}

func profileManager() (*auth.Manager, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, err
	}
	return auth.NewManager(cfg.Cookies.Store)
}

func profileArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return auth.DefaultProfile
}

func runCookiesSet(cmd *cobra.Command, args []string) error {
	manager, err := profileManager()
	if err != nil {
		return err
	}
	name := profileArg(args)

	value := cookieValue
	if value == "" {
		auth.ShowCookieGuide()
		fmt.Fprintf(ui.Out, "\nCookie header for profile %q (hidden): ", name)
		value, err = readSecret(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read cookies: %w", err)
		}
	}

	profile := &auth.Profile{
		Name:         name,
		Cookies:      value,
		LastModified: time.Now(),
	}
	if err := manager.Store(profile); err != nil {
		if errors.Is(err, auth.ErrInvalidProfile) {
			return fmt.Errorf("%w: expected name=value pairs separated by ';'", err)
		}
		return err
	}

	ui.PrintSuccess("Profile saved: " + name)
	ui.PrintInfo("Cookies", auth.MaskCookies(profile.Cookies))
	return nil
}

func runCookiesList(cmd *cobra.Command, args []string) error {
	manager, err := profileManager()
	if err != nil {
		return err
	}
	profiles, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}
	if len(profiles) == 0 {
		ui.PrintInfo("No stored profiles", "use 'somharvest cookies set' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Profiles")
	for _, p := range profiles {
		sanitized := auth.SanitizeProfile(p)
		fmt.Fprintf(ui.Out, "\n%s\n", sanitized.Name)
		fmt.Fprintf(ui.Out, "   Cookies: %s\n", sanitized.Cookies)
		if !sanitized.LastModified.IsZero() {
			fmt.Fprintf(ui.Out, "   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

func runCookiesClear(cmd *cobra.Command, args []string) error {
	manager, err := profileManager()
	if err != nil {
		return err
	}

	if clearAll {
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove profiles: %w", err)
		}
		ui.PrintSuccess("All profiles removed")
		return nil
	}

	name := profileArg(args)
	if err := manager.Delete(name); err != nil {
		return fmt.Errorf("failed to remove profile: %w", err)
	}
	ui.PrintSuccess("Profile removed: " + name)
	return nil
}

// readSecret reads one line without echo when stdin is a terminal
func readSecret(in *os.File) (string, error) {
	if term.IsTerminal(int(in.Fd())) {
		secret, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(ui.Out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}
	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
