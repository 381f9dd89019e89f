package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhuss/authgate/pkg/auth/schemes"
	"github.com/rhuss/authgate/pkg/config"
	replaymemory "github.com/rhuss/authgate/pkg/replay/memory"
	"github.com/rhuss/authgate/pkg/server"
	"github.com/rhuss/authgate/pkg/storage"
	"github.com/rhuss/authgate/pkg/storage/memory"
)

// checkCmd validates the config, strategy settings and route policies
// without connecting to postgres or redis.
func checkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and route policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			creds := make([]storage.Credential, 0, len(cfg.Credentials.Entries))
			for _, e := range cfg.Credentials.Entries {
				creds = append(creds, e.Credential())
			}
			store, err := memory.New(creds)
			if err != nil {
				return err
			}

			srv, err := server.New(cfg, server.Options{
				Deps: schemes.Deps{Credentials: store, Nonces: replaymemory.New()},
			})
			if err != nil {
				return err
			}

			reg := srv.Dispatcher().Registry()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "strategies: %v\n", reg.Names())
			if def := reg.DefaultStrategy(); def != "" {
				fmt.Fprintf(out, "default:    %s\n", def)
			}
			fmt.Fprintf(out, "routes:     %d\n", len(cfg.Auth.Routes))
			fmt.Fprintln(out, "configuration ok")
			return nil
		},
	}
}
