package clue

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clueboard/server/internal/judge"
)

const defaultJudgementTTL = 15 * time.Minute

// JudgementCache memoizes verdicts so resubmitting the identical answer for
// the same clue does not cost another evaluator call.
type JudgementCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ VerdictCache = (*JudgementCache)(nil)

func NewJudgementCache(client *redis.Client, ttl time.Duration) *JudgementCache {
	if ttl <= 0 {
		ttl = defaultJudgementTTL
	}
	return &JudgementCache{client: client, ttl: ttl}
}

func (c *JudgementCache) key(clueID int64, userAnswer string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(userAnswer)), " ")
	return strings.Join([]string{
		"judgement",
		strconv.FormatInt(clueID, 10),
		normalized,
	}, ":")
}

func (c *JudgementCache) Get(ctx context.Context, clueID int64, userAnswer string) (*judge.Judgement, error) {
	data, err := c.client.Get(ctx, c.key(clueID, userAnswer)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var verdict judge.Judgement
	if err := json.Unmarshal(data, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

func (c *JudgementCache) Set(ctx context.Context, clueID int64, userAnswer string, verdict judge.Judgement) error {
	data, err := json.Marshal(verdict)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(clueID, userAnswer), data, c.ttl).Err()
}
