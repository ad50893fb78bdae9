package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmoreira/hearing-sync/internal/config"
	"github.com/rmoreira/hearing-sync/internal/court"
	"github.com/rmoreira/hearing-sync/internal/crypto"
	"github.com/rmoreira/hearing-sync/internal/token"
)

// newCacheCmd groups token cache maintenance.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear cached portal sessions",
	}
	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCacheStatusCmd())
	return cmd
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [system...]",
		Short: "Remove cached sessions",
		Long:  `Removes the cached session for the named systems, or for every system when called without arguments. The next sync will require an interactive login.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}

			systems := args
			if len(systems) == 0 {
				for _, s := range court.DefaultSystems() {
					systems = append(systems, s.ID)
				}
			}
			for _, id := range systems {
				if _, ok := systemByID(id); !ok {
					return fmt.Errorf("unknown system %q (known: %s)", id, knownSystems())
				}
				if err := cache.Invalidate(id); err != nil {
					return fmt.Errorf("clearing session for %s: %w", id, err)
				}
				fmt.Printf("Cleared cached session for %s.\n", id)
			}
			return nil
		},
	}
}

func newCacheStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which portals have a valid cached session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}

			for _, system := range court.DefaultSystems() {
				tok, ok := cache.Load(system.ID)
				if !ok {
					fmt.Printf("%-6s no valid session cached\n", system.ID)
					continue
				}
				fmt.Printf("%-6s valid until %s (%d cookies)\n",
					system.ID, tok.ExpiresAt.Local().Format("02/01/2006 15:04"), len(tok.Cookies))
			}
			return nil
		},
	}
}

// openCache loads just enough configuration to reach the token cache,
// without requiring the full sync setup.
func openCache() (token.Cache, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cache, err := token.NewFileCache(cfg.TokenCacheFile)
	if err != nil {
		return nil, fmt.Errorf("opening token cache: %w", err)
	}
	cache.WithEncryptor(crypto.NewEncryptor(cfg.TokenCachePassphrase))
	return cache, nil
}
