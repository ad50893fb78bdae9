package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rmoreira/hearing-sync/internal/court"
	"github.com/rmoreira/hearing-sync/internal/logger"
)

// newLoginCmd creates the login subcommand, which forces a fresh interactive
// login instead of waiting for the next sync to need one.
func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [system...]",
		Short: "Log in to the court portals and cache the sessions",
		Long: `Opens the browser on each portal's login page and waits for you to finish
the login, including the two-factor step. The captured session is cached for
later sync runs. With no arguments every known portal is logged in.`,
		RunE: runLogin,
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	_, cache, authenticator, err := setup()
	if err != nil {
		return err
	}

	systems := court.DefaultSystems()
	if len(args) > 0 {
		var selected []court.System
		for _, arg := range args {
			system, ok := systemByID(arg)
			if !ok {
				return fmt.Errorf("unknown system %q (known: %s)", arg, knownSystems())
			}
			selected = append(selected, system)
		}
		systems = selected
	}

	ctx := cmd.Context()
	for _, system := range systems {
		// Drop whatever is cached so the login is always interactive.
		if err := cache.Invalidate(system.ID); err != nil {
			logger.Warn("Failed to clear cached session", logger.Fields{
				"system": system.ID,
				"error":  err.Error(),
			})
		}

		fmt.Printf("Logging in to %s. Finish the login in the browser window...\n", system.ID)
		result, err := authenticator.Authenticate(ctx, system.ID, system.LoginURL)
		if err != nil {
			return fmt.Errorf("logging in to %s: %w", system.ID, err)
		}
		fmt.Printf("Session for %s cached until %s.\n",
			system.ID, result.Token.ExpiresAt.Local().Format("02/01/2006 15:04"))
	}
	return nil
}

func knownSystems() string {
	ids := make([]string, 0, 2)
	for _, s := range court.DefaultSystems() {
		ids = append(ids, s.ID)
	}
	return strings.Join(ids, ", ")
}
