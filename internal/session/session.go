/**
 * @description
 * Per-client session: the realtime synchronizer and round state machine.
 *
 * Reconciles the push notification stream with point-in-time pull reads so the
 * client never acts on a push payload alone. A notification is only a
 * cache-invalidation signal: every one triggers a fresh full re-read of the
 * tally (and of the account's own vote when the notification concerns it)
 * rather than applying a delta to in-memory counters. Clients that joined at
 * different times or missed notifications therefore converge on the same view.
 *
 * State machine: uninitialized → initializing → active(round) → rolling_over
 * → active(round'), driven by exactly three event sources: the 1s countdown
 * tick, pull-read completions, and push notifications. All transitions run on
 * one goroutine; pull reads suspend off-loop and re-enter as events carrying
 * the round identity they were issued for, so late results from a superseded
 * round are discarded (the "still relevant?" guard).
 *
 * @dependencies
 * - internal/rounds: coordinator
 * - internal/votes: ledger
 * - internal/realtime: subscription bus
 * - internal/identity: account address
 */

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pricepulse-project/backend/internal/identity"
	"github.com/pricepulse-project/backend/internal/logger"
	"github.com/pricepulse-project/backend/internal/models"
	"github.com/pricepulse-project/backend/internal/realtime"
	"github.com/pricepulse-project/backend/internal/rounds"
	"github.com/pricepulse-project/backend/internal/votes"
)

// State names the phases of the round state machine
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateActive        State = "active"
	StateRollingOver   State = "rolling_over"
)

// View is the pure projection of session state handed to the presentation
// layer. It is a value: safe to read after the session has moved on.
type View struct {
	State       State         `json:"state"`
	Round       *models.Round `json:"round,omitempty"`
	UserVote    *models.Vote  `json:"user_vote,omitempty"`
	Tally       models.Tally  `json:"tally"`
	UpPercent   int           `json:"up_percent"`
	DownPercent int           `json:"down_percent"`
	TimeLeft    int           `json:"time_left"`
	RoundActive bool          `json:"round_active"` // store flag AND local countdown > 0
	Submitting  bool          `json:"submitting"`
}

// refreshResult is a pull-read completion re-entering the event loop. It
// carries the round identity the read was issued for; the loop drops results
// whose round the session no longer holds.
type refreshResult struct {
	roundID  uuid.UUID
	tally    models.Tally
	tallyOK  bool
	vote     *models.Vote
	voteRead bool
}

// Session synchronizes one client's view of the active round
type Session struct {
	coordinator *rounds.Coordinator
	ledger      *votes.Ledger
	bus         *realtime.Bus
	account     identity.Provider
	symbol      string

	mu         sync.RWMutex
	state      State
	round      *models.Round
	userVote   *models.Vote
	tally      models.Tally
	timeLeft   int
	submitting bool

	roundSub *realtime.RoundSubscription
	voteSub  *realtime.VoteSubscription
	voteCh   <-chan models.Vote // current vote stream; replaced on rollover

	refreshes chan refreshResult
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(coordinator *rounds.Coordinator, ledger *votes.Ledger, bus *realtime.Bus, account identity.Provider, tokenSymbol string) *Session {
	return &Session{
		coordinator: coordinator,
		ledger:      ledger,
		bus:         bus,
		account:     account,
		symbol:      tokenSymbol,
		state:       StateUninitialized,
		refreshes:   make(chan refreshResult, 16),
		done:        make(chan struct{}),
	}
}

// Start initializes the session and launches the event loop. The round-level
// subscription opened here lives for the whole session; only the vote-level
// subscription is torn down and reopened on rollover.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateInitializing
	s.mu.Unlock()

	// Subscribe before the initial lookup so a round created between the two
	// still reaches us as a notification.
	s.roundSub = s.bus.RoundChanges(s.symbol)

	round, err := s.coordinator.EnsureActiveRound(ctx, s.symbol)
	if err != nil {
		// Recoverable: the session runs without a round until one is announced
		logger.Error("session: no round available for %s: %v", s.symbol, err)
	}

	s.mu.Lock()
	if round != nil {
		s.adoptLocked(round)
	} else {
		s.state = StateActive
	}
	s.mu.Unlock()

	if round != nil {
		s.requestRefresh(round.ID)
	}

	s.wg.Add(1)
	go s.run()
	return nil
}

// run is the single cooperative event loop: timer ticks, push notifications,
// and pull-read completions, nothing else mutates session state.
func (s *Session) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		s.mu.RLock()
		voteCh := s.voteCh
		s.mu.RUnlock()

		select {
		case <-s.done:
			return

		case <-ticker.C:
			s.tick()

		case round, ok := <-s.roundSub.C:
			if !ok {
				return
			}
			s.onRoundChange(round)

		case vote, ok := <-voteCh:
			if !ok {
				// Old stream drained after rollover; the loop re-reads voteCh
				continue
			}
			s.onVoteInsert(vote)

		case result := <-s.refreshes:
			s.apply(result)
		}
	}
}

// tick recomputes the countdown from the local clock. When it reaches zero the
// round is treated as ended immediately, regardless of when the store-side
// sweep flips the flag; a rollover request is kicked off so the next round
// exists without waiting for another client.
func (s *Session) tick() {
	s.mu.Lock()
	round := s.round
	if round == nil || !round.IsActive {
		s.timeLeft = 0
		s.mu.Unlock()
		return
	}
	prev := s.timeLeft
	s.timeLeft = round.Remaining(time.Now())
	hitZero := prev > 0 && s.timeLeft == 0
	s.mu.Unlock()

	if hitZero {
		s.ensureRollover()
	}
}

// ensureRollover asks the coordinator for an active round off-loop. The
// successor arrives as a push notification; nothing is adopted here.
func (s *Session) ensureRollover() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.coordinator.EnsureActiveRound(ctx, s.symbol); err != nil {
			logger.Error("session: rollover ensure failed for %s: %v", s.symbol, err)
		}
	}()
}

// onRoundChange adopts a pushed round record wholesale when its identity or
// active flag differs from the cached one. Adoption resets local vote state,
// re-scopes the vote subscription to the new identifier, and re-reads the
// user's vote and the tally for the new round. Pushes for rounds older than
// the cached one are replays of a superseded round and are dropped; adopting
// one would strand the session behind the live round.
func (s *Session) onRoundChange(round models.Round) {
	s.mu.Lock()
	current := s.round
	changed := current == nil || current.ID != round.ID || current.IsActive != round.IsActive
	if !changed {
		s.mu.Unlock()
		return
	}
	if current != nil && current.ID != round.ID && olderRound(round, *current) {
		s.mu.Unlock()
		return
	}

	s.state = StateRollingOver
	newRound := round
	s.adoptLocked(&newRound)
	s.mu.Unlock()

	if round.IsActive {
		s.requestRefresh(round.ID)
	} else {
		// The pushed round is already closed. Kick the coordinator so the
		// successor exists without waiting for another client.
		s.ensureRollover()
	}
}

// olderRound reports whether a is an earlier round than b, by sequence number
// when both carry one, by creation time otherwise.
func olderRound(a, b models.Round) bool {
	if a.RoundNumber != b.RoundNumber {
		return a.RoundNumber < b.RoundNumber
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// adoptLocked installs a round as current. Caller holds s.mu.
// The old vote subscription is closed exactly once; a new one is opened only
// for an active round.
func (s *Session) adoptLocked(round *models.Round) {
	if s.voteSub != nil && (s.round == nil || s.round.ID != round.ID) {
		s.voteSub.Close()
		s.voteSub = nil
		s.voteCh = nil
	}

	sameRound := s.round != nil && s.round.ID == round.ID
	s.round = round
	s.timeLeft = round.Remaining(time.Now())

	if !sameRound {
		s.userVote = nil
		s.tally = models.Tally{}
	}

	if round.IsActive && s.voteSub == nil {
		s.voteSub = s.bus.VoteInserts(round.ID)
		s.voteCh = s.voteSub.C
	}

	s.state = StateActive
}

// onVoteInsert reacts to a pushed vote: it never touches counters directly,
// it only schedules the full tally re-read (plus an own-vote re-read when the
// vote belongs to this session's account).
func (s *Session) onVoteInsert(vote models.Vote) {
	s.mu.RLock()
	round := s.round
	s.mu.RUnlock()

	if round == nil || round.ID != vote.RoundID {
		// Late delivery from a superseded subscription
		return
	}
	s.requestRefresh(round.ID)
}

// requestRefresh issues the pull reads off-loop and feeds the completion back
// in as an event tagged with the round it was issued for.
func (s *Session) requestRefresh(roundID uuid.UUID) {
	address, connected := s.account.Address()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result := refreshResult{roundID: roundID}

		tally, err := s.ledger.Tally(ctx, roundID)
		if err != nil {
			// Leave the last-known-good tally in place
			logger.Error("session: tally refresh failed for round %s: %v", roundID, err)
		} else {
			result.tally = tally
			result.tallyOK = true
		}

		if connected {
			vote, err := s.ledger.CurrentVote(ctx, roundID, address)
			if err != nil {
				logger.Error("session: vote refresh failed for round %s: %v", roundID, err)
			} else {
				result.vote = vote
				result.voteRead = true
			}
		}

		select {
		case s.refreshes <- result:
		case <-s.done:
		}
	}()
}

// apply installs a pull-read completion, guarded against staleness: results
// for a round the session no longer holds are discarded so late reads cannot
// overwrite fresher state.
func (s *Session) apply(result refreshResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.round == nil || s.round.ID != result.roundID {
		return
	}
	if result.tallyOK {
		s.tally = result.tally
	}
	if result.voteRead {
		s.userVote = result.vote
	}
}

// Cast submits the connected account's prediction through the ledger and, on
// success, refreshes this session's own view immediately instead of waiting
// for the push notification to arrive.
func (s *Session) Cast(ctx context.Context, direction models.VoteDirection) (*models.Vote, error) {
	address, connected := s.account.Address()
	if !connected {
		return nil, votes.ErrNotConnected
	}

	s.mu.Lock()
	if s.round == nil || !s.round.IsActive || s.timeLeft <= 0 {
		s.mu.Unlock()
		return nil, votes.ErrRoundInactive
	}
	round := s.round
	s.submitting = true
	s.mu.Unlock()

	vote, err := s.ledger.Cast(ctx, round, address, direction)

	s.mu.Lock()
	s.submitting = false
	if err == nil {
		s.userVote = vote
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	s.requestRefresh(round.ID)
	return vote, nil
}

// View projects current state for rendering
func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	up, down := s.tally.Percentages()
	view := View{
		State:       s.state,
		Tally:       s.tally,
		UpPercent:   up,
		DownPercent: down,
		TimeLeft:    s.timeLeft,
		Submitting:  s.submitting,
	}
	if s.round != nil {
		round := *s.round
		view.Round = &round
		view.RoundActive = round.IsActive && s.timeLeft > 0
	}
	if s.userVote != nil {
		vote := *s.userVote
		view.UserVote = &vote
	}
	return view
}

// Close releases both subscriptions and stops the event loop. Required on
// teardown: an unreleased subscription leaks a bus connection across
// navigation. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		if s.voteSub != nil {
			s.voteSub.Close()
			s.voteSub = nil
			s.voteCh = nil
		}
		if s.roundSub != nil {
			s.roundSub.Close()
		}
		s.mu.Unlock()

		s.wg.Wait()
	})
}
