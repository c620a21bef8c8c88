package scoring

import (
	"context"
	"errors"
	"sync"

	"prizeboard/internal/competition"
)

type fakeSegments struct {
	mu      sync.Mutex
	totals  map[string]map[competition.Metric]float64
	err     error
	queries []SegmentQuery
}

func (f *fakeSegments) SumSaved(_ context.Context, q SegmentQuery) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return 0, f.err
	}
	return f.totals[q.UserID][q.Metric], nil
}

func (f *fakeSegments) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeProfiles map[string]competition.AgeGroup

func (f fakeProfiles) AgeGroup(_ context.Context, userID string) (competition.AgeGroup, error) {
	g, ok := f[userID]
	if !ok {
		return "", &competition.UserNotFoundError{UserID: userID}
	}
	return g, nil
}

var errStoreDown = errors.New("store down")
