package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/truematch/internal/auth"
	tmerrors "github.com/felixgeelhaar/truematch/internal/errors"
	"github.com/felixgeelhaar/truematch/internal/platform"
	"github.com/felixgeelhaar/truematch/internal/tui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage your TrueMatch account and session",
	Long: `Create an account, sign in and out, and inspect the current session.

Examples:
  truematch auth register
  truematch auth login --email you@example.com
  truematch auth status
  truematch auth logout`,
}

var authRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a TrueMatch account",
	Long: `Create a TrueMatch account. Registration does not sign you in;
run 'truematch auth login' afterwards.

Without --name, --email and --password you are prompted for them.`,
	RunE: withRuntime(runAuthRegister),
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to TrueMatch",
	Long: `Sign in with your email and password. The server also sets a
long-lived refresh cookie, kept in the client home, which renews the access
token when it expires.

The password is prompted for when --password is not given. Set
TRUEMATCH_PASSWORD to supply it non-interactively.`,
	RunE: withRuntime(runAuthLogin),
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the local session",
	Long: `Ask the server to end the session, then remove the local token and
cached results. The local session is removed even when the server cannot be
reached.`,
	RunE: withRuntime(runAuthLogout),
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who is signed in",
	Long: `Restore the session from the stored token, or from the refresh
cookie if the token expired, and show the signed-in user.`,
	RunE: withRuntime(runAuthStatus),
}

var authTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Inspect the stored access token",
	Long: `Show the fingerprint and expiry of the stored access token. The token
itself is never printed. With --refresh a new access token is obtained
through the refresh cookie first.`,
	RunE: withRuntime(runAuthToken),
}

func init() {
	authRegisterCmd.Flags().String("name", "", "display name")
	authRegisterCmd.Flags().String("email", "", "account email")
	authRegisterCmd.Flags().String("password", "", "account password")

	authLoginCmd.Flags().String("email", "", "account email")
	authLoginCmd.Flags().String("password", "", "account password (prompted when omitted)")

	authTokenCmd.Flags().Bool("refresh", false, "obtain a new access token before inspecting it")

	authCmd.AddCommand(authRegisterCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authTokenCmd)

	rootCmd.AddCommand(authCmd)
}

func runAuthRegister(ctx context.Context, rt *runtime, args []string) error {
	r, err := registrationInput(rt)
	if err != nil {
		return err
	}

	if err := rt.manager.Register(ctx, r); err != nil {
		return err
	}

	return rt.render(messageOutput{
		OK:      true,
		Message: "Account created. Run 'truematch auth login' to sign in.",
		styles:  rt.styles,
	})
}

func registrationInput(rt *runtime) (platform.Registration, error) {
	r := platform.Registration{
		Name:     strings.TrimSpace(rt.flagString("name")),
		Email:    strings.TrimSpace(rt.flagString("email")),
		Password: rt.flagString("password"),
	}

	if r.Name == "" || r.Email == "" || r.Password == "" {
		if !tui.ShouldPrompt() {
			switch {
			case r.Name == "":
				return r, missingInputError("name")
			case r.Email == "":
				return r, missingInputError("email")
			default:
				return r, missingInputError("password")
			}
		}
		return tui.PromptRegistration()
	}

	if err := tui.ValidateEmail(r.Email); err != nil {
		return r, configError("--email", r.Email, "an email address")
	}
	return r, nil
}

func runAuthLogin(ctx context.Context, rt *runtime, args []string) error {
	// Login is only valid from Anonymous, so restore whatever session exists.
	rt.bootstrap(ctx)
	if err := rt.manager.RequireAuthenticated(); err == nil {
		return auth.NewError(auth.ErrAlreadyAuthenticated, "already logged in", nil)
	}

	creds, err := loginInput(rt)
	if err != nil {
		return err
	}

	if err := rt.manager.Login(ctx, creds.Email, creds.Password); err != nil {
		return err
	}
	rt.expired.Store(false)

	return rt.render(newSessionOutput(rt.styles, rt.manager.Current()))
}

func loginInput(rt *runtime) (tui.Credentials, error) {
	creds := tui.Credentials{
		Email:    strings.TrimSpace(rt.flagString("email")),
		Password: rt.flagString("password"),
	}
	if creds.Password == "" {
		creds.Password = envPassword()
	}

	if creds.Email != "" && creds.Password != "" {
		return creds, nil
	}
	if !tui.ShouldPrompt() {
		if creds.Email == "" {
			return creds, missingInputError("email")
		}
		return creds, missingInputError("password")
	}
	return tui.PromptCredentials(creds.Email)
}

func runAuthLogout(ctx context.Context, rt *runtime, args []string) error {
	rt.loggingOut.Store(true)

	msg := "Logged out."
	if err := rt.manager.Logout(ctx); err != nil {
		rt.logger.Warn("server logout failed", "error", err)
		msg = "Logged out locally. The server could not be reached to end the session."
	}
	if err := rt.jar.Clear(); err != nil {
		rt.logger.Warn("failed to clear cookies", "error", err)
	}

	return rt.render(messageOutput{OK: true, Message: msg, styles: rt.styles})
}

func runAuthStatus(ctx context.Context, rt *runtime, args []string) error {
	s := rt.bootstrap(ctx)
	return rt.render(newSessionOutput(rt.styles, s))
}

func runAuthToken(ctx context.Context, rt *runtime, args []string) error {
	refresh := rt.flagBool("refresh")

	if refresh {
		if _, err := rt.client.Refresh(ctx); err != nil {
			return err
		}
	}

	token, ok := rt.store.Read()
	if !ok {
		return tmerrors.NewNotAuthenticatedError()
	}

	info, err := auth.InspectToken(token)
	if err != nil {
		return fmt.Errorf("failed to inspect token: %w", err)
	}

	now := time.Now()
	return rt.render(tokenOutput{
		TokenInfo: info,
		Expired:   info.Expired(now),
		Refreshed: refresh,
		now:       now,
		styles:    rt.styles,
	})
}

func envPassword() string {
	return os.Getenv("TRUEMATCH_PASSWORD")
}

