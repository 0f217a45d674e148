package clue

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clueboard/server/internal/judge"
)

const (
	// CategoriesPerRound is how many categories a playable round carries.
	CategoriesPerRound = 6
	// CluesPerCategory is how many distinct values complete a category.
	CluesPerCategory = 5
)

// StoreSession is one request's view of the clue store. Implementations
// hold a dedicated storage connection until Release.
type StoreSession interface {
	CategoryExists(ctx context.Context, category string, round int) (bool, error)
	DistinctCategories(ctx context.Context, round int) ([]string, error)
	AirDates(ctx context.Context, category string, round int) ([]time.Time, error)
	BoardClues(ctx context.Context, category string, round int, airDate time.Time) ([]Clue, error)
	GetClue(ctx context.Context, id int64) (Clue, error)
	Release()
}

// Store hands out per-request sessions.
type Store interface {
	Session(ctx context.Context) (StoreSession, error)
}

// VerdictCache memoizes verdicts per (clue, answer) pair. Optional.
type VerdictCache interface {
	Get(ctx context.Context, clueID int64, userAnswer string) (*judge.Judgement, error)
	Set(ctx context.Context, clueID int64, userAnswer string, verdict judge.Judgement) error
}

// Service assembles playable rounds and runs the answer-judgment flow.
type Service struct {
	store  Store
	judge  judge.Judge
	cache  VerdictCache
	logger zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// ServiceOptions tune construction. Rand, when set, makes category sampling
// deterministic for tests.
type ServiceOptions struct {
	Cache VerdictCache
	Rand  *rand.Rand
}

func NewService(store Store, evaluator judge.Judge, opts ServiceOptions, logger zerolog.Logger) *Service {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		store:  store,
		judge:  evaluator,
		cache:  opts.Cache,
		logger: logger.With().Str("component", "clue_service").Logger(),
		rng:    rng,
	}
}

// AssembleRound builds a board for the round: up to six distinct categories,
// each with the clues of the most recent air date that yields a complete set
// of five values. requestedCategory, when non-empty, must exist for the
// round and is always included.
func (s *Service) AssembleRound(ctx context.Context, round int, requestedCategory string) (Board, error) {
	if !ValidRound(round) {
		return nil, ErrInvalidRound
	}

	sess, err := s.store.Session(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	// Requested category is validated before any sampling happens.
	if requestedCategory != "" {
		exists, err := sess.CategoryExists(ctx, requestedCategory, round)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrCategoryNotFound
		}
	}

	categories, err := s.pickCategories(ctx, sess, round, requestedCategory)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, ErrNoCategories
	}

	board := make(Board, len(categories))
	for _, category := range categories {
		clues, err := s.completeCategory(ctx, sess, category, round)
		if err != nil {
			return nil, err
		}
		if len(clues) != CluesPerCategory {
			// Known gap: the category is served short rather than resampled.
			s.logger.Error().
				Str("category", category).
				Int("round", round).
				Int("clues", len(clues)).
				Msg("could not find a complete clue set for category")
		}
		board[category] = project(clues)
	}
	return board, nil
}

// pickCategories samples uniformly without replacement over the distinct
// category set, never over clue rows, so frequent categories carry no extra
// weight. With a requested category it is prepended, the list deduplicated,
// and the total capped.
func (s *Service) pickCategories(ctx context.Context, sess StoreSession, round int, requested string) ([]string, error) {
	all, err := sess.DistinctCategories(ctx, round)
	if err != nil {
		return nil, err
	}

	target := CategoriesPerRound
	if requested != "" {
		target = CategoriesPerRound - 1
	}
	picked := s.sample(all, target)

	if requested != "" {
		categories := make([]string, 0, CategoriesPerRound)
		categories = append(categories, requested)
		for _, c := range picked {
			if c != requested {
				categories = append(categories, c)
			}
		}
		if len(categories) > CategoriesPerRound {
			categories = categories[:CategoriesPerRound]
		}
		picked = categories
	}
	return picked, nil
}

// sample returns n elements drawn uniformly without replacement.
func (s *Service) sample(set []string, n int) []string {
	out := make([]string, len(set))
	copy(out, set)

	s.mu.Lock()
	s.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	s.mu.Unlock()

	if len(out) > n {
		out = out[:n]
	}
	return out
}

// completeCategory walks the category's air dates newest first and settles
// on the first date with exactly five clues. When no date qualifies the last
// candidate's clues are returned as-is.
func (s *Service) completeCategory(ctx context.Context, sess StoreSession, category string, round int) ([]Clue, error) {
	dates, err := sess.AirDates(ctx, category, round)
	if err != nil {
		return nil, err
	}

	var clues []Clue
	for _, airDate := range dates {
		clues, err = sess.BoardClues(ctx, category, round, airDate)
		if err != nil {
			return nil, err
		}
		if len(clues) == CluesPerCategory {
			break
		}
	}
	return clues, nil
}

func project(clues []Clue) []View {
	views := make([]View, 0, len(clues))
	for _, c := range clues {
		views = append(views, ToView(c))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Value < views[j].Value })
	return views
}

// AnswerResult is the response shape for one judged submission. The correct
// answer is revealed only after judgment.
type AnswerResult struct {
	Correct       bool   `json:"correct"`
	Feedback      string `json:"feedback"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
}

// SubmitAnswer looks up the clue, has the evaluator judge the user's answer,
// and reveals the stored answer alongside the verdict.
func (s *Service) SubmitAnswer(ctx context.Context, clueID int64, userAnswer string) (AnswerResult, error) {
	sess, err := s.store.Session(ctx)
	if err != nil {
		return AnswerResult{}, err
	}
	defer sess.Release()

	c, err := sess.GetClue(ctx, clueID)
	if err != nil {
		return AnswerResult{}, err
	}
	// The evaluator call can be slow; don't hold the storage connection
	// through it.
	sess.Release()

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, clueID, userAnswer); err == nil && cached != nil {
			return s.result(c, userAnswer, *cached), nil
		}
	}

	verdict, err := s.judge.Evaluate(ctx, judge.Context{
		Category:      c.Category,
		Clue:          c.ClueText,
		Comments:      c.Comments,
		Notes:         c.Notes,
		CorrectAnswer: c.CorrectAnswer,
		UserAnswer:    userAnswer,
	})
	if err != nil {
		return AnswerResult{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, clueID, userAnswer, verdict); err != nil {
			s.logger.Warn().Err(err).Int64("clue_id", clueID).Msg("judgement cache write failed")
		}
	}
	return s.result(c, userAnswer, verdict), nil
}

func (s *Service) result(c Clue, userAnswer string, verdict judge.Judgement) AnswerResult {
	return AnswerResult{
		Correct:       verdict.Correct,
		Feedback:      verdict.Feedback,
		UserAnswer:    userAnswer,
		CorrectAnswer: c.CorrectAnswer,
	}
}
