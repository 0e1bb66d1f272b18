package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/bsncloud/internal/credentials"
)

// authCommand returns the 'auth' subcommand for managing BSN Cloud credentials.
func authCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage BSN Cloud authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Log in, select the network and report the session expiry",
				Action: r.authLoginAction,
			},
			{
				Name:  "store",
				Usage: "Save the client secret in the OS keyring",
				Flags: []cli.Flag{
					clientIDFlag(),
				},
				Action: r.authStoreAction,
			},
			{
				Name:  "forget",
				Usage: "Remove the client secret from the OS keyring",
				Flags: []cli.Flag{
					clientIDFlag(),
				},
				Action: r.authForgetAction,
			},
		},
	}
}

func clientIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "client-id",
		Usage:   "BSN Cloud client id",
		Sources: cli.EnvVars(credentials.EnvClientID),
	}
}

// authLoginAction forces a fresh login to verify the configured credentials.
func (r *runner) authLoginAction(ctx context.Context, cmd *cli.Command) error {
	if err := r.app.Session.Login(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	network, err := r.app.Session.Network(ctx)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	fmt.Fprintln(w, "=== Login Successful ===")
	fmt.Fprintf(w, "Network: %s\n", network)
	fmt.Fprintf(w, "Session valid until: %s\n", r.app.Session.State().ExpiresAt().Format(time.RFC3339))

	return nil
}

// authStoreAction reads the secret without echo and stores it in the keyring.
func (r *runner) authStoreAction(ctx context.Context, cmd *cli.Command) error {
	clientID := cmd.String("client-id")
	if clientID == "" {
		return fmt.Errorf("client id is required (--client-id or %s)", credentials.EnvClientID)
	}

	secret, err := readSecureInput(ctx, fmt.Sprintf("Enter client secret for %s: ", clientID))
	if err != nil {
		return err
	}
	if secret == "" {
		return fmt.Errorf("client secret cannot be empty")
	}

	if err := r.keyringSource().StoreSecret(clientID, secret); err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}

	w := cmd.Root().Writer
	fmt.Fprintln(w, "Secret saved to the OS keyring")
	if !r.app.Config.Credentials.Keyring {
		fmt.Fprintln(w, "Enable it with credentials.keyring = true or BSNCLOUD_CREDENTIALS__KEYRING=true")
	}

	return nil
}

// authForgetAction removes the keyring entry for the client id.
func (r *runner) authForgetAction(ctx context.Context, cmd *cli.Command) error {
	clientID := cmd.String("client-id")
	if clientID == "" {
		return fmt.Errorf("client id is required (--client-id or %s)", credentials.EnvClientID)
	}

	if err := r.keyringSource().DeleteSecret(clientID); err != nil {
		return fmt.Errorf("failed to remove secret: %w", err)
	}

	fmt.Fprintln(cmd.Root().Writer, "Secret removed from the OS keyring")
	return nil
}

// keyringSource returns a source bound to the configured keyring service,
// whether or not the keyring layer is enabled for resolution.
func (r *runner) keyringSource() *credentials.Source {
	return credentials.NewSource(credentials.WithKeyring(r.app.Config.Credentials.KeyringService))
}

// readSecureInput reads user input with hidden display and context cancellation support.
// Goroutine+select pattern required because term.ReadPassword has no native context support.
func readSecureInput(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	type result struct {
		value string
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		inputBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		resultCh <- result{value: string(inputBytes), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("failed to read input: %w", res.err)
		}
		return res.value, nil
	}
}
