package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/postgresengine"
)

func newQueryCmd(a *app) *cobra.Command {
	flags := &queryFlags{}

	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a commented query against PostgreSQL and print the size of the resulting event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			pool, err := pgxpool.New(ctx, a.config.GetString(keyDatabaseDSN))
			if err != nil {
				return fmt.Errorf("failed to create connection pool: %w", err)
			}
			defer pool.Close()

			es, err := postgresengine.NewEventStoreFromPGXPool(pool, a.eventStoreOptions()...)
			if err != nil {
				return err
			}

			events, maxSequenceNumber, err := es.Query(flags.withOperation(ctx), filter)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "events: %d\nmax sequence number: %d\n", len(events), maxSequenceNumber)

			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "timeout for connecting and querying")

	return cmd
}
