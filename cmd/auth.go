package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"google.golang.org/api/option"

	"github.com/teemow/inboxbridge/internal/gmail"
	"github.com/teemow/inboxbridge/internal/google"
)

// errNoInteraction is returned when authorization needs the browser but
// there is neither a terminal to print the consent URL to nor permission
// to open a browser.
var errNoInteraction = errors.New("authorization requires user interaction: run from a terminal or allow the browser to be opened")

// isTerminal reports whether stderr is attached to a terminal.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Google credential used by the server",
	}
	authCmd.AddCommand(newAuthLoginCmd())
	authCmd.AddCommand(newAuthStatusCmd())
	return authCmd
}

func newAuthLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize access to Gmail and Google Calendar",
		Long: `Obtain a valid credential and store it in the token file.

An expired token with a refresh token is refreshed. Otherwise, or with
--force-consent, the browser authorization flow runs: the consent URL is
printed to stderr and opened in the default browser, and a loopback listener
receives the authorization code.

On success the stored credential is verified by fetching the Gmail profile.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logger := newLogger(cfg)
			manager, err := newCredentialManager(cfg, logger, nil)
			if err != nil {
				return fmt.Errorf("failed to create credential manager: %w", err)
			}
			return runAuthLogin(ctx, cmd.OutOrStdout(), manager, loginOptions{
				forceConsent: cfg.Auth.ForceConsent,
				openBrowser:  cfg.Auth.OpenBrowser,
				newGmail: func(ctx context.Context) (*gmail.Client, error) {
					return gmail.NewClient(ctx, logger, nil, option.WithTokenSource(manager.TokenSource(ctx)))
				},
			})
		},
	}

	cmd.Flags().Bool("force-consent", false, "Always run the browser flow and ask Google for a new refresh token (env: INBOXBRIDGE_FORCE_CONSENT)")
	cmd.Flags().Bool("no-browser", false, "Print the consent URL without opening a browser (env: INBOXBRIDGE_OPEN_BROWSER=false)")

	return cmd
}

type loginOptions struct {
	forceConsent bool
	openBrowser  bool
	newGmail     func(ctx context.Context) (*gmail.Client, error)
}

func runAuthLogin(ctx context.Context, out io.Writer, manager *google.Manager, opts loginOptions) error {
	status, err := manager.Status()
	if err != nil {
		return err
	}
	interactive := opts.forceConsent || !status.Authenticated()
	if interactive && !opts.openBrowser && !isTerminal() {
		return errNoInteraction
	}

	var cred *google.Credential
	if opts.forceConsent {
		cred, err = manager.Reauthorize(ctx)
	} else {
		cred, err = manager.Obtain(ctx)
	}
	if err != nil {
		return err
	}
	if cred.Token.Expiry.IsZero() {
		fmt.Fprintf(out, "Credential stored in %s\n", status.TokenFile)
	} else {
		fmt.Fprintf(out, "Credential stored in %s (expires %s)\n", status.TokenFile, cred.Token.Expiry.Format(time.RFC3339))
	}

	client, err := opts.newGmail(ctx)
	if err != nil {
		return fmt.Errorf("failed to create Gmail client: %w", err)
	}
	email, err := client.Profile(ctx)
	if err != nil {
		return fmt.Errorf("credential stored but Gmail verification failed: %w", err)
	}
	fmt.Fprintf(out, "Authenticated as %s\n", email)
	return nil
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			manager, err := newCredentialManager(cfg, newLogger(cfg), nil)
			if err != nil {
				return fmt.Errorf("failed to create credential manager: %w", err)
			}
			status, err := manager.Status()
			if err != nil {
				return err
			}
			printAuthStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func printAuthStatus(out io.Writer, st google.Status) {
	fmt.Fprintf(out, "Token file:        %s (%s)\n", st.TokenFile, presence(st.TokenFileExists))
	fmt.Fprintf(out, "Credentials file:  %s (%s)\n", st.CredentialsFile, presence(st.CredentialsFileExists))
	fmt.Fprintf(out, "State:             %s\n", st.State)
	if !st.Expiry.IsZero() {
		fmt.Fprintf(out, "Expiry:            %s\n", st.Expiry.Format(time.RFC3339))
	}
	if len(st.Scopes) > 0 {
		fmt.Fprintf(out, "Scopes:            %s\n", strings.Join(st.Scopes, " "))
	}
	fmt.Fprintln(out, st.Message())
}

func presence(exists bool) string {
	if exists {
		return "present"
	}
	return "missing"
}
