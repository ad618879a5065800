package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tgienger/depplan/internal/api"
	"github.com/tgienger/depplan/internal/auth"
)

var (
	username      string
	email         string
	passwordStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Long: `Sign in to the backend. The bearer token is kept in the local
database and reused by the board and the other commands.

Examples:
  depplan login --username ada
  echo "$PW" | depplan login --username ada --password-stdin`,
	RunE: runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Long:  `Create an account. The server sends a verification email; sign in once it is confirmed.`,
	RunE:  runRegister,
}

var resendVerification bool

var verifyCmd = &cobra.Command{
	Use:   "verify [token]",
	Short: "Confirm your email address",
	Long: `Confirm the email address of a new account with the token from the
verification email. With --resend a new email is requested instead.

Examples:
  depplan verify 3f2c9a
  depplan verify --resend --email ada@example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	loginCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	registerCmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	registerCmd.Flags().StringVarP(&email, "email", "e", "", "Email address")
	registerCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	verifyCmd.Flags().BoolVar(&resendVerification, "resend", false, "Send a new verification email")
	verifyCmd.Flags().StringVarP(&email, "email", "e", "", "Account email (with --resend)")
}

// ask returns value, or prompts for it when empty
func ask(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return prompt(label, false)
}

func password(cmd *cobra.Command) (string, error) {
	if passwordStdin {
		return readSecret(cmd.InOrStdin())
	}
	return prompt("Password", true)
}

func runLogin(cmd *cobra.Command, args []string) error {
	r, err := open(false)
	if err != nil {
		return err
	}
	defer r.Close()

	name, err := ask(username, "Username")
	if err != nil {
		return err
	}
	pw, err := password(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), r.cfg.API.Timeout)
	defer cancel()
	user, err := r.auth.Login(ctx, r.client, api.Credentials{Username: name, Password: pw})
	if err != nil {
		return fmt.Errorf("login failed: %s", api.ErrorMessage(err, err.Error()))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Username)
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	r, err := open(false)
	if err != nil {
		return err
	}
	defer r.Close()

	name, err := ask(username, "Username")
	if err != nil {
		return err
	}
	addr, err := ask(email, "Email")
	if err != nil {
		return err
	}
	pw, err := password(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), r.cfg.API.Timeout)
	defer cancel()
	msg, err := r.auth.Register(ctx, r.client, api.Registration{Username: name, Email: addr, Password: pw})
	if err != nil {
		return fmt.Errorf("registration failed: %s", api.ErrorMessage(err, err.Error()))
	}
	if msg == "" {
		msg = "Account created. Check your email to verify it, then run 'depplan login'."
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	r, err := open(false)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.auth.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	r, err := signedIn()
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), r.cfg.API.Timeout)
	defer cancel()
	user, err := r.client.Me(ctx)
	if err != nil {
		return r.handleAPIError(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s <%s>", user.Username, user.Email)
	if user.IsAdmin {
		fmt.Fprint(out, " (admin)")
	}
	fmt.Fprintln(out)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	if resendVerification == (len(args) == 1) {
		return errors.New("give a verification token, or --resend with --email")
	}

	r, err := open(false)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), r.cfg.API.Timeout)
	defer cancel()

	var msg string
	if resendVerification {
		addr, err := ask(email, "Email")
		if err != nil {
			return err
		}
		if err := auth.ValidateEmail(addr); err != nil {
			return err
		}
		if msg, err = r.client.ResendVerification(ctx, strings.TrimSpace(addr)); err != nil {
			return fmt.Errorf("resend failed: %s: %w", api.ErrorMessage(err, "request rejected"), err)
		}
		if msg == "" {
			msg = "Verification email sent"
		}
	} else {
		if msg, err = r.client.VerifyEmail(ctx, args[0]); err != nil {
			return fmt.Errorf("verification failed: %s: %w", api.ErrorMessage(err, "token rejected"), err)
		}
		if msg == "" {
			msg = "Email verified. Run 'depplan login' to sign in."
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}
