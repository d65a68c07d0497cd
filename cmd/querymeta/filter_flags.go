package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore"
	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/querymeta"
)

// ErrMalformedPredicate is returned for a --predicate flag which is not of the form key=value.
var ErrMalformedPredicate = errors.New("predicate must be of the form key=value")

// queryFlags are the flags shared by the commands which build a query.
type queryFlags struct {
	operation     string
	eventTypes    []string
	predicates    []string
	allPredicates bool
	occurredFrom  string
	occurredUntil string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.operation, "operation", "o", "", "repository operation whose query comment is embedded (default: the built-in query operation)")
	flags.StringSliceVarP(&f.eventTypes, "event-type", "e", nil, "event type to match, repeatable")
	flags.StringArrayVarP(&f.predicates, "predicate", "p", nil, "payload predicate key=value, repeatable")
	flags.BoolVar(&f.allPredicates, "all-predicates", false, "require all predicates to match instead of any")
	flags.StringVar(&f.occurredFrom, "from", "", "only events which occurred at or after this RFC 3339 time")
	flags.StringVar(&f.occurredUntil, "until", "", "only events which occurred at or before this RFC 3339 time")
}

// withOperation returns ctx carrying the operation, if one was given.
func (f *queryFlags) withOperation(ctx context.Context) context.Context {
	if f.operation == "" {
		return ctx
	}

	return querymeta.WithOperation(ctx, f.operation)
}

func (f *queryFlags) filter() (eventstore.Filter, error) {
	builder := eventstore.BuildEventFilter()

	if f.occurredFrom != "" {
		from, err := time.Parse(time.RFC3339, f.occurredFrom)
		if err != nil {
			return eventstore.Filter{}, fmt.Errorf("invalid --from: %w", err)
		}

		builder = builder.OccurredFrom(from)
	}

	if f.occurredUntil != "" {
		until, err := time.Parse(time.RFC3339, f.occurredUntil)
		if err != nil {
			return eventstore.Filter{}, fmt.Errorf("invalid --until: %w", err)
		}

		builder = builder.OccurredUntil(until)
	}

	if len(f.eventTypes) == 0 && len(f.predicates) == 0 {
		return builder.MatchingAnyEvent(), nil
	}

	builder = builder.Matching()

	if len(f.eventTypes) > 0 {
		builder = builder.AnyEventTypeOf(f.eventTypes[0], f.eventTypes[1:]...)
	}

	if len(f.predicates) > 0 {
		predicates := make([]eventstore.FilterPredicate, 0, len(f.predicates))

		for _, raw := range f.predicates {
			key, val, found := strings.Cut(raw, "=")
			if !found || key == "" {
				return eventstore.Filter{}, fmt.Errorf("%w: %q", ErrMalformedPredicate, raw)
			}

			predicates = append(predicates, eventstore.P(key, val))
		}

		if f.allPredicates {
			builder = builder.AllPredicatesOf(predicates[0], predicates[1:]...)
		} else {
			builder = builder.AnyPredicateOf(predicates[0], predicates[1:]...)
		}
	}

	return builder.Finalize(), nil
}
