package eventstore

import (
	"cmp"
	"slices"
	"time"
)

type FilterEventTypeString = string
type FilterKeyString = string
type FilterValString = string

/***** Filter *****/

// Filter defines which events form a "dynamic event stream".
// Items are combined with OR, the occurred-at range is combined with AND.
type Filter struct {
	items         []FilterItem
	occurredFrom  time.Time
	occurredUntil time.Time
}

func (f Filter) Items() []FilterItem {
	return f.items
}

// OccurredFrom returns the inclusive lower bound of the occurred-at range, zero if unbounded.
func (f Filter) OccurredFrom() time.Time {
	return f.occurredFrom
}

// OccurredUntil returns the inclusive upper bound of the occurred-at range, zero if unbounded.
func (f Filter) OccurredUntil() time.Time {
	return f.occurredUntil
}

/***** FilterItem *****/

type FilterItem struct {
	eventTypes             []FilterEventTypeString
	predicates             []FilterPredicate
	allPredicatesMustMatch bool
}

func (fi FilterItem) EventTypes() []FilterEventTypeString {
	return fi.eventTypes
}

func (fi FilterItem) Predicates() []FilterPredicate {
	return fi.predicates
}

func (fi FilterItem) AllPredicatesMustMatch() bool {
	return fi.allPredicatesMustMatch
}

func (fi FilterItem) isEmpty() bool {
	return len(fi.eventTypes) == 0 && len(fi.predicates) == 0
}

/***** FilterPredicate *****/

// FilterPredicate matches events whose JSON payload contains key with the value val.
type FilterPredicate struct {
	key FilterKeyString
	val FilterValString
}

func P(key FilterKeyString, val FilterValString) FilterPredicate {
	return FilterPredicate{key: key, val: val}
}

func (fp FilterPredicate) Key() FilterKeyString {
	return fp.key
}

func (fp FilterPredicate) Val() FilterValString {
	return fp.val
}

/***** FilterBuilder *****/

// FilterBuilder builds a Filter. Each Matching/OrMatching starts a new FilterItem:
//
//	filter := eventstore.BuildEventFilter().
//		Matching().
//		AnyEventTypeOf("BookCopyAddedToCirculation", "BookCopyRemovedFromCirculation").
//		AnyPredicateOf(eventstore.P("BookID", bookID)).
//		Finalize()
//
// Input is sanitized: empty event types and partial predicates are dropped, the rest is sorted and deduplicated.
type FilterBuilder struct {
	filter      Filter
	currentItem FilterItem
}

// BuildEventFilter creates a FilterBuilder which must eventually be finalized with Finalize() or MatchingAnyEvent().
func BuildEventFilter() FilterBuilder {
	return FilterBuilder{}
}

// Matching starts a new FilterItem, discarding an unfinished one.
func (fb FilterBuilder) Matching() FilterBuilder {
	fb.currentItem = FilterItem{}

	return fb
}

// AnyEventTypeOf adds event types to the current FilterItem, ANY of them must match.
func (fb FilterBuilder) AnyEventTypeOf(eventType FilterEventTypeString, eventTypes ...FilterEventTypeString) FilterBuilder {
	all := append(slices.Clone(fb.currentItem.eventTypes), eventType)
	all = append(all, eventTypes...)
	all = slices.DeleteFunc(all, func(e FilterEventTypeString) bool { return e == "" })
	slices.Sort(all)

	fb.currentItem.eventTypes = slices.Clip(slices.Compact(all))

	return fb
}

// AnyPredicateOf adds predicates to the current FilterItem, ANY of them must match.
func (fb FilterBuilder) AnyPredicateOf(predicate FilterPredicate, predicates ...FilterPredicate) FilterBuilder {
	fb.currentItem.allPredicatesMustMatch = false
	fb.currentItem.predicates = fb.sanitizedPredicates(predicate, predicates...)

	return fb
}

// AllPredicatesOf adds predicates to the current FilterItem, ALL of them must match.
func (fb FilterBuilder) AllPredicatesOf(predicate FilterPredicate, predicates ...FilterPredicate) FilterBuilder {
	fb.currentItem.allPredicatesMustMatch = true
	fb.currentItem.predicates = fb.sanitizedPredicates(predicate, predicates...)

	return fb
}

func (fb FilterBuilder) sanitizedPredicates(predicate FilterPredicate, predicates ...FilterPredicate) []FilterPredicate {
	all := append(slices.Clone(fb.currentItem.predicates), predicate)
	all = append(all, predicates...)
	all = slices.DeleteFunc(all, func(p FilterPredicate) bool { return p.key == "" || p.val == "" })
	slices.SortFunc(all, func(a, b FilterPredicate) int {
		return cmp.Or(cmp.Compare(a.key, b.key), cmp.Compare(a.val, b.val))
	})

	return slices.Clip(slices.Compact(all))
}

// OrMatching finalizes the current FilterItem and starts a new one.
func (fb FilterBuilder) OrMatching() FilterBuilder {
	fb.filter.items = fb.itemsWithCurrent()
	fb.currentItem = FilterItem{}

	return fb
}

// OccurredFrom restricts the filter to events which occurred at or after from.
func (fb FilterBuilder) OccurredFrom(from time.Time) FilterBuilder {
	fb.filter.occurredFrom = from

	return fb
}

// OccurredUntil restricts the filter to events which occurred at or before until.
func (fb FilterBuilder) OccurredUntil(until time.Time) FilterBuilder {
	fb.filter.occurredUntil = until

	return fb
}

// MatchingAnyEvent returns a Filter without items, matching all events in the occurred-at range.
func (fb FilterBuilder) MatchingAnyEvent() Filter {
	fb.filter.items = nil

	return fb.filter
}

// Finalize returns the Filter, including the current FilterItem unless it is empty.
func (fb FilterBuilder) Finalize() Filter {
	fb.filter.items = fb.itemsWithCurrent()

	return fb.filter
}

func (fb FilterBuilder) itemsWithCurrent() []FilterItem {
	items := slices.Clone(fb.filter.items)

	if !fb.currentItem.isEmpty() {
		items = append(items, fb.currentItem)
	}

	return items
}
