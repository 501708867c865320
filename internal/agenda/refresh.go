package agenda

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"famcal/internal/ics"
	appLog "famcal/internal/log"
	"famcal/internal/model"
)

// ErrAllFeedsFailed is returned when no configured feed produced events;
// the previous snapshot stays published.
var ErrAllFeedsFailed = errors.New("all feeds failed")

// FeedFetcher is the part of ics.Fetcher the refresher needs.
type FeedFetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, []error)
}

// Refresher runs the fetch -> normalize -> merge -> publish cycle.
type Refresher struct {
	fetcher FeedFetcher
	sources []ics.Source
	loc     *time.Location
	store   *Store
	now     func() time.Time

	// mu serializes cycles started by the scheduler and by /api/refresh.
	mu sync.Mutex
}

// NewRefresher wires a refresher. loc anchors event times (time.Local when
// nil).
func NewRefresher(fetcher FeedFetcher, sources []ics.Source, loc *time.Location, store *Store) *Refresher {
	if loc == nil {
		loc = time.Local
	}
	return &Refresher{
		fetcher: fetcher,
		sources: sources,
		loc:     loc,
		store:   store,
		now:     time.Now,
	}
}

// Refresh runs one cycle. Feed failures are logged and skipped; the new
// snapshot is published unless every configured feed failed. Panics inside
// the cycle are recovered and returned as errors.
func (r *Refresher) Refresh(ctx context.Context) (snap *Snapshot, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("refresh panicked: %v", rec)
			snap = nil
			appLog.Error("refresh panicked", err)
		}
	}()

	started := r.now()
	results, fetchErrs := r.fetcher.FetchAll(ctx, r.sources)

	feedErrs := make([]error, 0, len(fetchErrs))
	feedErrs = append(feedErrs, fetchErrs...)

	lists := make([][]model.Event, 0, len(results))
	for _, res := range results {
		events, nerr := ics.Normalize(res.Source, res.Body, r.loc)
		if nerr != nil {
			appLog.Error("feed normalize failed", nerr, "id", res.Source.ID, "url", ics.RedactURL(res.Source.URL))
			feedErrs = append(feedErrs, fmt.Errorf("feed %s: %w", res.Source.ID, nerr))
			continue
		}
		lists = append(lists, events)
	}

	if len(r.sources) > 0 && len(lists) == 0 {
		err = fmt.Errorf("%w: %w", ErrAllFeedsFailed, errors.Join(feedErrs...))
		appLog.Error("refresh kept previous events", err, "feeds", len(r.sources))
		return nil, err
	}

	merged := ics.Merge(lists...)
	snap = &Snapshot{
		Events:     merged,
		UpdatedAt:  started,
		FeedErrors: errorStrings(feedErrs),
	}
	r.store.Publish(snap)

	appLog.Info("refresh published",
		"events", len(merged),
		"feeds", len(r.sources),
		"failed_feeds", len(feedErrs),
		"took", r.now().Sub(started).String(),
	)
	return snap, nil
}

func errorStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}
