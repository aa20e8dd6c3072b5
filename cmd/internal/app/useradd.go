package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errPasswordMismatch = errors.New("useradd: passwords do not match")

// RunUserAdd creates an account in the configured store from the command
// line. The password is read twice from the terminal without echo.
//
//	missioncontrol useradd -u <name>
func RunUserAdd(ctx context.Context, cfg Config, log Logger, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	fs.SetOutput(w)
	username := fs.String("u", "", "username of the new account")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*username) == "" {
		fs.Usage()
		return errors.New("useradd: -u is required")
	}

	pw, err := promptPassword(w, "Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword(w, "Confirm password: ")
	if err != nil {
		return err
	}
	if pw != confirm {
		return errPasswordMismatch
	}

	accounts, _, dbPool, err := openAccounts(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closePool(dbPool)

	u, err := accounts.CreateAccount(ctx, *username, pw)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "created user %s (%s)\n", u.Username, u.ID)
	return err
}

func promptPassword(w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("useradd: read password: %w", err)
	}
	return string(b), nil
}
