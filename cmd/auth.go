package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/voiceiq/viq-cli/credentials"
	"github.com/voiceiq/viq-cli/pkg/logging"
)

// NewAuthCommand creates the auth command group.
func NewAuthCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long: `Manage the backend access token.

Every backend command needs a valid token. 'viq auth login' exchanges your
email and password for one and stores it encrypted in ~/.viq/credentials.yaml.
The encryption key lives in the system keyring; set VIQ_ENCRYPTION_KEY or
VIQ_PASSPHRASE where no keyring is available.

VIQ_TOKEN overrides the stored token.`,
	}

	cmd.AddCommand(newAuthLoginCommand(deps))
	cmd.AddCommand(newAuthLogoutCommand(deps))
	cmd.AddCommand(newAuthStatusCommand(deps))
	return cmd
}

func newAuthLoginCommand(deps *Deps) *cobra.Command {
	var (
		email         string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Long: `Log in to the backend and store the access token.

Examples:
  # Interactive login
  viq auth login

  # Non-interactive, password from a secret manager
  pass show viq | viq auth login --email ann@example.com --password-stdin

A failed login leaves any stored token untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, deps, email, passwordStdin)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func runLogin(cmd *cobra.Command, deps *Deps, email string, passwordStdin bool) error {
	e, err := deps.setup(cmd)
	if err != nil {
		return err
	}

	in := bufio.NewReader(deps.In)
	if email == "" {
		fmt.Fprint(e.out, "Email: ")
		if email, err = readLine(in); err != nil {
			return fmt.Errorf("reading email: %w", err)
		}
	}
	email = strings.TrimSpace(email)

	var password string
	if passwordStdin {
		password, err = readLine(in)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading password: %w", err)
		}
	} else {
		if password, err = deps.ReadPassword("Password: "); err != nil {
			return err
		}
	}
	if email == "" || password == "" {
		return fmt.Errorf("email and password are required")
	}

	c, err := deps.client(e)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd, e.cfg.Timeout)
	defer cancel()

	result, err := c.Login(ctx, email, password)
	if err != nil {
		return err
	}

	store, err := deps.NewStore()
	if err != nil {
		return fmt.Errorf("initializing credential store: %w", err)
	}
	creds := &credentials.Credentials{
		Token:     result.AccessToken,
		Email:     email,
		BaseURL:   c.BaseURL(),
		ExpiresAt: credentials.TokenExpiry(result.AccessToken, deps.Now()),
	}
	if err := store.Save(creds); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	e.logger.Info("Logged in", logging.F("email", email))

	fmt.Fprintln(e.out, "Login successful!")
	fmt.Fprintf(e.out, "  Account: %s\n", email)
	fmt.Fprintf(e.out, "  Token:   %s\n", credentials.MaskToken(creds.Token))
	fmt.Fprintf(e.out, "  Expires: %s (in %s)\n", creds.ExpiresAt.Format(time.RFC3339), credentials.FormatExpiry(creds.ExpiresAt, deps.Now()))
	credPath, _ := credentials.CredentialsPath()
	fmt.Fprintf(e.out, "\nCredentials stored in: %s\n", credPath)
	return nil
}

func newAuthLogoutCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			store, err := deps.NewStore()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}

			if !store.Exists() {
				fmt.Fprintln(out, "No stored credentials found.")
			} else {
				if err := store.Delete(); err != nil {
					return fmt.Errorf("removing credentials: %w", err)
				}
				fmt.Fprintln(out, "Logged out successfully.")
			}

			if os.Getenv(credentials.TokenEnvVar) != "" {
				fmt.Fprintf(out, "\nNote: %s environment variable is still set.\n", credentials.TokenEnvVar)
				fmt.Fprintf(out, "Unset it with: unset %s\n", credentials.TokenEnvVar)
			}
			return nil
		},
	}
}

func newAuthStatusCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			now := time.Now()
			if deps.Now != nil {
				now = deps.Now()
			}

			store, err := deps.NewStore()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}

			fmt.Fprintln(out, "Authentication Status")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)

			creds, err := store.Active()
			switch {
			case errors.Is(err, credentials.ErrNoCredentials):
				fmt.Fprintln(out, "Not logged in. Run 'viq auth login' to authenticate.")
				return nil
			case errors.Is(err, credentials.ErrExpiredToken):
				fmt.Fprintln(out, "Stored token has expired. Run 'viq auth login' to authenticate again.")
				return nil
			case err != nil:
				return fmt.Errorf("loading credentials: %w", err)
			}

			source := "Stored credentials"
			if creds.FromEnv {
				source = "Environment variable (" + credentials.TokenEnvVar + ")"
			}
			fmt.Fprintf(out, "  Source:  %s\n", source)
			if creds.Email != "" {
				fmt.Fprintf(out, "  Account: %s\n", creds.Email)
			}
			if sub := credentials.TokenSubject(creds.Token); sub != "" && sub != creds.Email {
				fmt.Fprintf(out, "  Subject: %s\n", sub)
			}
			if creds.BaseURL != "" {
				fmt.Fprintf(out, "  Backend: %s\n", creds.BaseURL)
			}
			fmt.Fprintf(out, "  Token:   %s\n", credentials.MaskToken(creds.Token))
			if !creds.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "  Expires: %s (in %s)\n", creds.ExpiresAt.Format(time.RFC3339), credentials.FormatExpiry(creds.ExpiresAt, now))
				if creds.ExpiresAt.Sub(now) < time.Hour {
					fmt.Fprintln(out, "\nWarning: token expires soon. Run 'viq auth login' to renew it.")
				}
			}
			if !creds.FromEnv {
				fmt.Fprintf(out, "  Key:     %s\n", store.KeySource())
			}
			return nil
		},
	}
}
