package clue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clueboard/server/internal/judge"
)

type memorySession struct {
	clues    []Clue
	calls    []string
	released bool
}

func (m *memorySession) record(name string) { m.calls = append(m.calls, name) }

func (m *memorySession) CategoryExists(_ context.Context, category string, round int) (bool, error) {
	m.record("CategoryExists")
	for _, c := range m.clues {
		if c.Category == category && c.Round == round {
			return true, nil
		}
	}
	return false, nil
}

func (m *memorySession) DistinctCategories(_ context.Context, round int) ([]string, error) {
	m.record("DistinctCategories")
	seen := map[string]bool{}
	var out []string
	for _, c := range m.clues {
		if c.Round == round && !seen[c.Category] {
			seen[c.Category] = true
			out = append(out, c.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memorySession) AirDates(_ context.Context, category string, round int) ([]time.Time, error) {
	m.record("AirDates")
	seen := map[time.Time]bool{}
	var dates []time.Time
	for _, c := range m.clues {
		if c.Category == category && c.Round == round && !seen[c.AirDate] {
			seen[c.AirDate] = true
			dates = append(dates, c.AirDate)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	return dates, nil
}

func (m *memorySession) BoardClues(_ context.Context, category string, round int, airDate time.Time) ([]Clue, error) {
	m.record("BoardClues")
	// One clue per value, lowest id wins, same as the SQL contract.
	byValue := map[int]Clue{}
	for _, c := range m.clues {
		if c.Category != category || c.Round != round || !c.AirDate.Equal(airDate) {
			continue
		}
		if existing, ok := byValue[c.Value]; !ok || c.ID < existing.ID {
			byValue[c.Value] = c
		}
	}
	var out []Clue
	for _, c := range byValue {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}

func (m *memorySession) GetClue(_ context.Context, id int64) (Clue, error) {
	m.record("GetClue")
	for _, c := range m.clues {
		if c.ID == id {
			return c, nil
		}
	}
	return Clue{}, ErrClueNotFound
}

func (m *memorySession) Release() { m.released = true }

type memoryStore struct {
	sess *memorySession
}

func (s *memoryStore) Session(_ context.Context) (StoreSession, error) {
	return s.sess, nil
}

type stubJudge struct {
	fn    func(jc judge.Context) (judge.Judgement, error)
	calls int
}

func (s *stubJudge) Evaluate(_ context.Context, jc judge.Context) (judge.Judgement, error) {
	s.calls++
	return s.fn(jc)
}

func exactMatchJudge() *stubJudge {
	return &stubJudge{fn: func(jc judge.Context) (judge.Judgement, error) {
		if strings.EqualFold(strings.TrimSpace(jc.UserAnswer), strings.TrimSpace(jc.CorrectAnswer)) {
			return judge.Judgement{Correct: true}, nil
		}
		return judge.Judgement{Correct: false, Feedback: "That is not it"}, nil
	}}
}

type memoryVerdicts struct {
	store map[string]judge.Judgement
}

func newMemoryVerdicts() *memoryVerdicts {
	return &memoryVerdicts{store: map[string]judge.Judgement{}}
}

func (c *memoryVerdicts) key(clueID int64, answer string) string {
	return fmt.Sprintf("%d:%s", clueID, strings.ToLower(answer))
}

func (c *memoryVerdicts) Get(_ context.Context, clueID int64, answer string) (*judge.Judgement, error) {
	if v, ok := c.store[c.key(clueID, answer)]; ok {
		return &v, nil
	}
	return nil, nil
}

func (c *memoryVerdicts) Set(_ context.Context, clueID int64, answer string, verdict judge.Judgement) error {
	c.store[c.key(clueID, answer)] = verdict
	return nil
}

// seeder assigns ids the way the loader would: monotonically increasing.
type seeder struct {
	nextID int64
	clues  []Clue
}

func (s *seeder) board(category string, round int, airDate time.Time, values ...int) {
	for _, v := range values {
		s.nextID++
		s.clues = append(s.clues, Clue{
			ID:            s.nextID,
			Round:         round,
			Value:         v,
			Category:      category,
			ClueText:      fmt.Sprintf("%s clue for %d", category, v),
			CorrectAnswer: fmt.Sprintf("%s answer %d", category, v),
			AirDate:       airDate,
		})
	}
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(sess *memorySession, evaluator judge.Judge, cache VerdictCache) *Service {
	return NewService(&memoryStore{sess: sess}, evaluator, ServiceOptions{
		Cache: cache,
		Rand:  rand.New(rand.NewSource(1)),
	}, zerolog.Nop())
}

func fullSeed() *seeder {
	s := &seeder{}
	newest := date("2024-03-01")
	for _, cat := range []string{"HISTORY", "SCIENCE", "OPERA", "WORD ORIGINS", "POTPOURRI", "RIVERS", "STATE CAPITALS", "THE MOVIES"} {
		s.board(cat, RoundSingle, newest, 200, 400, 600, 800, 1000)
		s.board(cat, RoundDouble, newest, 400, 800, 1200, 1600, 2000)
	}
	return s
}

func TestAssembleRoundInvalidRound(t *testing.T) {
	svc := newTestService(&memorySession{}, exactMatchJudge(), nil)

	_, err := svc.AssembleRound(context.Background(), 3, "")
	assert.ErrorIs(t, err, ErrInvalidRound)
}

func TestAssembleRoundReturnsSixCompleteCategories(t *testing.T) {
	sess := &memorySession{clues: fullSeed().clues}
	svc := newTestService(sess, exactMatchJudge(), nil)

	board, err := svc.AssembleRound(context.Background(), RoundSingle, "")
	require.NoError(t, err)
	assert.Len(t, board, CategoriesPerRound)
	assert.True(t, sess.released)

	for category, views := range board {
		require.Len(t, views, CluesPerCategory, "category %s", category)
		seen := map[int]bool{}
		for i, v := range views {
			if i > 0 {
				assert.Greater(t, v.Value, views[i-1].Value, "values must ascend in %s", category)
			}
			assert.False(t, seen[v.Value], "duplicate value in %s", category)
			seen[v.Value] = true
			assert.Equal(t, "2024-03-01", v.AirDate)
		}
		assert.Equal(t, []int{200, 400, 600, 800, 1000}, viewValues(views))
	}
}

func viewValues(views []View) []int {
	out := make([]int, len(views))
	for i, v := range views {
		out[i] = v.Value
	}
	return out
}

func TestAssembleRoundIncludesRequestedCategory(t *testing.T) {
	sess := &memorySession{clues: fullSeed().clues}
	svc := newTestService(sess, exactMatchJudge(), nil)

	board, err := svc.AssembleRound(context.Background(), RoundSingle, "OPERA")
	require.NoError(t, err)
	assert.Contains(t, board, "OPERA")
	assert.LessOrEqual(t, len(board), CategoriesPerRound)
}

func TestAssembleRoundUnknownCategoryFailsBeforeSampling(t *testing.T) {
	sess := &memorySession{clues: fullSeed().clues}
	svc := newTestService(sess, exactMatchJudge(), nil)

	_, err := svc.AssembleRound(context.Background(), RoundSingle, "NO SUCH CATEGORY")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
	assert.NotContains(t, sess.calls, "DistinctCategories")
	assert.True(t, sess.released)
}

func TestAssembleRoundNoCategories(t *testing.T) {
	svc := newTestService(&memorySession{}, exactMatchJudge(), nil)

	_, err := svc.AssembleRound(context.Background(), RoundSingle, "")
	assert.ErrorIs(t, err, ErrNoCategories)
}

func TestAssembleRoundFallsBackToOlderAirDate(t *testing.T) {
	s := &seeder{}
	// Newest appearance only has four values; the older one is complete.
	s.board("HISTORY", RoundSingle, date("2024-03-01"), 200, 400, 600, 800)
	s.board("HISTORY", RoundSingle, date("2019-06-12"), 200, 400, 600, 800, 1000)
	svc := newTestService(&memorySession{clues: s.clues}, exactMatchJudge(), nil)

	board, err := svc.AssembleRound(context.Background(), RoundSingle, "HISTORY")
	require.NoError(t, err)

	views := board["HISTORY"]
	require.Len(t, views, CluesPerCategory)
	for _, v := range views {
		assert.Equal(t, "2019-06-12", v.AirDate)
	}
}

func TestAssembleRoundServesIncompleteCategory(t *testing.T) {
	s := &seeder{}
	s.board("RIVERS", RoundSingle, date("2024-03-01"), 200, 400, 600)
	svc := newTestService(&memorySession{clues: s.clues}, exactMatchJudge(), nil)

	board, err := svc.AssembleRound(context.Background(), RoundSingle, "")
	require.NoError(t, err)
	assert.Len(t, board["RIVERS"], 3)
}

func TestAssembleRoundDedupesValuesByLowestID(t *testing.T) {
	airDate := date("2024-03-01")
	s := &seeder{}
	s.board("SCIENCE", RoundSingle, airDate, 200, 400, 600, 800, 1000)
	// Duplicate row at value 400 with a higher id must lose.
	s.board("SCIENCE", RoundSingle, airDate, 400)
	svc := newTestService(&memorySession{clues: s.clues}, exactMatchJudge(), nil)

	board, err := svc.AssembleRound(context.Background(), RoundSingle, "SCIENCE")
	require.NoError(t, err)

	views := board["SCIENCE"]
	require.Len(t, views, CluesPerCategory)
	assert.Equal(t, int64(2), views[1].ID)
	assert.Equal(t, 400, views[1].Value)
}

func TestSubmitAnswerRoundTrip(t *testing.T) {
	sess := &memorySession{clues: fullSeed().clues}
	svc := newTestService(sess, exactMatchJudge(), nil)

	stored := sess.clues[0]
	result, err := svc.SubmitAnswer(context.Background(), stored.ID, stored.CorrectAnswer)
	require.NoError(t, err)

	assert.True(t, result.Correct)
	assert.Empty(t, result.Feedback)
	assert.Equal(t, stored.CorrectAnswer, result.UserAnswer)
	assert.Equal(t, stored.CorrectAnswer, result.CorrectAnswer)
	assert.True(t, sess.released)
}

func TestSubmitAnswerIncorrect(t *testing.T) {
	sess := &memorySession{clues: fullSeed().clues}
	svc := newTestService(sess, exactMatchJudge(), nil)

	result, err := svc.SubmitAnswer(context.Background(), sess.clues[0].ID, "definitely wrong")
	require.NoError(t, err)

	assert.False(t, result.Correct)
	assert.NotEmpty(t, result.Feedback)
	assert.NotContains(t, result.Feedback, sess.clues[0].CorrectAnswer)
}

func TestSubmitAnswerClueNotFound(t *testing.T) {
	svc := newTestService(&memorySession{}, exactMatchJudge(), nil)

	_, err := svc.SubmitAnswer(context.Background(), 999999, "foo")
	assert.ErrorIs(t, err, ErrClueNotFound)
}

func TestSubmitAnswerJudgeFailure(t *testing.T) {
	sess := &memorySession{clues: fullSeed().clues}
	failing := &stubJudge{fn: func(judge.Context) (judge.Judgement, error) {
		return judge.Judgement{}, fmt.Errorf("%w: connection refused", judge.ErrUnavailable)
	}}
	svc := newTestService(sess, failing, nil)

	_, err := svc.SubmitAnswer(context.Background(), sess.clues[0].ID, "foo")
	assert.ErrorIs(t, err, judge.ErrUnavailable)
	assert.True(t, sess.released)
}

func TestSubmitAnswerUsesVerdictCache(t *testing.T) {
	sess := &memorySession{clues: fullSeed().clues}
	evaluator := exactMatchJudge()
	svc := newTestService(sess, evaluator, newMemoryVerdicts())

	clueID := sess.clues[0].ID
	_, err := svc.SubmitAnswer(context.Background(), clueID, "some answer")
	require.NoError(t, err)
	require.Equal(t, 1, evaluator.calls)

	result, err := svc.SubmitAnswer(context.Background(), clueID, "some answer")
	require.NoError(t, err)
	assert.Equal(t, 1, evaluator.calls, "identical resubmission must hit the cache")
	assert.False(t, result.Correct)
}

func TestSubmitAnswerReleasesSessionBeforeJudgeCall(t *testing.T) {
	sess := &memorySession{clues: fullSeed().clues}
	evaluator := &stubJudge{fn: func(judge.Context) (judge.Judgement, error) {
		if !sess.released {
			return judge.Judgement{}, errors.New("storage session held across evaluator call")
		}
		return judge.Judgement{Correct: true}, nil
	}}
	svc := newTestService(sess, evaluator, nil)

	_, err := svc.SubmitAnswer(context.Background(), sess.clues[0].ID, "foo")
	assert.NoError(t, err)
}
