package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotsync/internal/server"
	"github.com/desertthunder/spotsync/internal/session"
	"github.com/desertthunder/spotsync/internal/shared"
)

// AuthStatus is the JSON shape of `auth status`.
type AuthStatus struct {
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Error     string    `json:"error,omitempty"`
}

// AuthLogin runs the PKCE authorization flow.
//
// With a loopback redirect URI a local server receives the redirect. Any
// other redirect URI (a private scheme) is completed by pasting the URL the
// browser was sent to.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.services(); err != nil {
		return err
	}

	redirect, err := url.Parse(r.config.Spotify.RedirectURI)
	if err != nil {
		return fmt.Errorf("%w: redirect_uri: %v", shared.ErrInvalidConfig, err)
	}

	authURL, err := r.manager.Authorize()
	if err != nil {
		return fmt.Errorf("failed to start authorization: %w", err)
	}

	if redirect.Scheme == "http" {
		err = r.loopbackLogin(ctx, redirect, authURL, cmd.Duration("timeout"), cmd.Bool("no-browser"))
	} else {
		err = r.pasteLogin(ctx, authURL, cmd.Bool("no-browser"))
	}
	if err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("Refresh token stored in the %s credential store.\n", r.config.Credentials.Backend)
	return nil
}

func (r *Runner) loopbackLogin(ctx context.Context, redirect *url.URL, authURL string, timeout time.Duration, noBrowser bool) error {
	addr := redirect.Host
	if redirect.Port() == "" {
		addr = r.config.Server.Addr()
	}

	handler := server.NewOAuthHandler(redirect.Path, r.manager.Callback)
	router := server.NewRouter()
	router.Use(server.Logging(r.logger))
	router.Mount(handler)

	srv, err := server.Listen(addr, router, r.logger)
	if err != nil {
		r.manager.Cancel()
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	r.showAuthURL(authURL, noBrowser)
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-handler.Result():
		if err != nil {
			return fmt.Errorf("authorization failed: %w", err)
		}
		return nil
	case <-timer.C:
		r.manager.Cancel()
		return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		r.manager.Cancel()
		return ctx.Err()
	}
}

func (r *Runner) pasteLogin(ctx context.Context, authURL string, noBrowser bool) error {
	r.showAuthURL(authURL, noBrowser)
	r.writePlain("→ After approving, paste the URL your browser was redirected to:\n> ")

	line, err := bufio.NewReader(r.input).ReadString('\n')
	if err != nil && strings.TrimSpace(line) == "" {
		r.manager.Cancel()
		return fmt.Errorf("%w: no callback url entered", shared.ErrMissingArgument)
	}

	if err := r.manager.CompleteAuthorization(ctx, strings.TrimSpace(line)); err != nil {
		if errors.Is(err, shared.ErrStateMismatch) {
			r.manager.Cancel()
		}
		return fmt.Errorf("authorization failed: %w", err)
	}
	return nil
}

func (r *Runner) showAuthURL(authURL string, noBrowser bool) {
	if !noBrowser {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		err := shared.OpenBrowser(authURL)
		if err == nil {
			return
		}
		r.logger.Warn("failed to open browser automatically", "error", err)
		r.writePlainln("⚠ Could not open browser automatically.")
	}
	r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
}

// AuthStatus restores the session from the credential store and reports its state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.services(); err != nil {
		return err
	}

	status := AuthStatus{}
	if err := r.manager.Start(ctx); err != nil {
		status.Error = err.Error()
	}

	s := r.manager.Session()
	status.State = s.State.String()
	if s.State == session.Authenticated {
		status.ExpiresAt = s.Expiry
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	switch s.State {
	case session.Authenticated:
		r.writePlain("✓ Signed in (access token valid until %s)\n", s.Expiry.Local().Format(time.Kitchen))
	default:
		r.writePlain("✗ Not signed in. Run `spotsync auth login`.\n")
	}
	if status.Error != "" {
		r.writePlain("  Last error: %s\n", status.Error)
	}
	return nil
}

// AuthRefresh forces a token refresh.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.authenticate(ctx); err != nil {
		return err
	}
	if err := r.manager.Refresh(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Token refreshed (valid until %s)\n", r.manager.Session().Expiry.Local().Format(time.Kitchen))
}

// AuthLogout deletes the stored refresh token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.services(); err != nil {
		return err
	}
	if err := r.manager.SignOut(ctx); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return r.writePlain("✓ Signed out\n")
}
