package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/IshaanNene/xmarks/internal/auth"
)

// authCmd creates the "auth" subcommand group.
func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored X auth_token cookie",
		Long: `Store the auth_token cookie of a logged-in X session in the system keychain.
It is used when browser.auth_token is not configured.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [token]",
		Short: "Save the auth token (prompts when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) == 1 {
				token = args[0]
			} else {
				var err error
				if token, err = readToken(); err != nil {
					return err
				}
			}
			if err := auth.NewTokenStore().Save(token); err != nil {
				return err
			}
			fmt.Println("Auth token saved to keychain.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which auth token would be used",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, source, err := auth.NewTokenStore().Resolve(cfg.Browser.AuthToken)
			if errors.Is(err, auth.ErrTokenNotFound) {
				fmt.Println("No auth token configured; sign in through the browser window.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("Auth token %s (from %s)\n", auth.Mask(token), source)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored auth token",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := auth.NewTokenStore().Delete()
			if errors.Is(err, auth.ErrTokenNotFound) {
				fmt.Println("No stored auth token.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println("Auth token removed.")
			return nil
		},
	})

	return cmd
}

// readToken prompts for the token without echo when stdin is a terminal.
func readToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "auth_token: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
