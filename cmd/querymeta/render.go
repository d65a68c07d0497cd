package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // postgres driver
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/postgresengine"
)

func newRenderCmd(a *app) *cobra.Command {
	flags := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the SQL the event store generates for an operation, query comment included",
		Long: `render prints the SELECT statement which a Query in the given repository operation would execute.
It does not connect to the database.`,
		Example: `  querymeta render --config querymeta.yaml --operation findAllActive \
    --event-type BookCopyAddedToCirculation --predicate BookID=0198...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}

			// sql.Open only validates the DSN, no connection is made until the first statement
			db, err := sql.Open("postgres", a.config.GetString(keyDatabaseDSN))
			if err != nil {
				return fmt.Errorf("failed to open database handle: %w", err)
			}
			defer func() { _ = db.Close() }()

			es, err := postgresengine.NewEventStoreFromSQLDB(db, a.eventStoreOptions()...)
			if err != nil {
				return err
			}

			sqlQuery, err := es.RenderQuery(flags.withOperation(cmd.Context()), filter)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), sqlQuery)

			return nil
		},
	}

	flags.register(cmd)

	return cmd
}
