package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/maltedev/tcg-price-scraper/internal/scraper"
)

var seedWait time.Duration

var seedCmd = &cobra.Command{
	Use:   "seed-state",
	Short: "Sign in by hand in a headed browser and save the session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := current
		engine := a.engine()
		_, sessions, _ := scraper.NewFromConfig(a.cfg, engine, a.store)

		wait := func() error {
			if !a.cfg.Auth.SeedWaitInput {
				fmt.Fprintf(os.Stderr, "Log in within %s; the state is saved afterwards.\n", seedWait)
				select {
				case <-time.After(seedWait):
					return nil
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				}
			}

			fmt.Fprintln(os.Stderr, "Log in in the opened browser (solve any challenge), then press ENTER here.")
			_, err := bufio.NewReader(os.Stdin).ReadString('\n')
			return err
		}

		return sessions.Seed(cmd.Context(), engine, wait)
	},
}

func init() {
	seedCmd.Flags().DurationVar(&seedWait, "wait", 2*time.Minute, "how long to wait when auth.seed_wait_input is off")
}
