package scoring

import (
	"context"
	"fmt"
	"sync"

	"prizeboard/internal/competition"
	"prizeboard/internal/worker"

	"go.uber.org/zap"
)

// Pool runs scoring tasks concurrently
type Pool interface {
	Submit(ctx context.Context, task worker.Task, done func(error)) error
}

// Builder produces live leaderboards
type Builder struct {
	scorer *Scorer
	pool   Pool
	logger *zap.Logger
}

// NewBuilder creates a leaderboard builder. A nil pool scores participants
// one after the other on the calling goroutine.
func NewBuilder(scorer *Scorer, pool Pool, logger *zap.Logger) *Builder {
	return &Builder{
		scorer: scorer,
		pool:   pool,
		logger: logger,
	}
}

type scored struct {
	entry competition.ScoreEntry
	err   error
}

// Build scores every eligible participant of roster and ranks them. Users
// whose profile cannot be resolved are skipped with a warning; any other
// error aborts the build.
func (b *Builder) Build(ctx context.Context, info competition.CompetitionInfo, roster []competition.Participant) (competition.Leaderboard, error) {
	for _, c := range info.Criteria {
		if !c.Supported() {
			return competition.Leaderboard{}, &competition.UnsupportedCriterionError{Criterion: c}
		}
	}

	eligible := competition.Eligible(roster)

	var (
		results []scored
		err     error
	)
	if b.pool == nil {
		results, err = b.scoreSequential(ctx, info, eligible)
	} else {
		results, err = b.scoreParallel(ctx, info, eligible)
	}
	if err != nil {
		return competition.Leaderboard{}, err
	}

	entries := make([]competition.ScoreEntry, 0, len(results))
	for i, r := range results {
		if r.err != nil {
			b.logger.Warn("skipping participant without a resolvable user",
				zap.String("competition_id", info.ID),
				zap.String("participant_id", eligible[i].ID),
				zap.String("user_id", eligible[i].UserID),
				zap.Error(r.err))
			continue
		}
		entries = append(entries, r.entry)
	}
	competition.SortEntries(entries)

	return competition.Leaderboard{
		CompetitionID: info.ID,
		Entries:       entries,
	}, nil
}

func (b *Builder) scoreSequential(ctx context.Context, info competition.CompetitionInfo, eligible []competition.Participant) ([]scored, error) {
	results := make([]scored, len(eligible))
	for i, p := range eligible {
		entry, err := b.scorer.ScoreUser(ctx, info, p.UserID)
		if err != nil && !competition.IsUserNotFound(err) {
			return nil, fmt.Errorf("score participant %s: %w", p.ID, err)
		}
		results[i] = scored{entry: entry, err: err}
	}
	return results, nil
}

func (b *Builder) scoreParallel(ctx context.Context, info competition.CompetitionInfo, eligible []competition.Participant) ([]scored, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]scored, len(eligible))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for i, p := range eligible {
		wg.Add(1)
		task := func(ctx context.Context) error {
			entry, err := b.scorer.ScoreUser(ctx, info, p.UserID)
			results[i] = scored{entry: entry, err: err}
			return err
		}
		done := func(err error) {
			defer wg.Done()
			if err == nil || competition.IsUserNotFound(err) {
				return
			}
			fail(fmt.Errorf("score participant %s: %w", p.ID, err))
		}
		if err := b.pool.Submit(ctx, task, done); err != nil {
			wg.Done()
			fail(fmt.Errorf("submit participant %s: %w", p.ID, err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
