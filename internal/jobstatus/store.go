package jobstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/pkg/redis"
)

// historySize bounds the per-job completion list
const historySize = 100

// Store persists job completions so that a downstream job started in
// another process can tell whether its upstream finished
// ⭐ SSOT: 작업 완료 신호는 여기서만 기록
type Store struct {
	client *redis.Client
}

// New creates a completion store on client
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// RecordCompletion stores c as the job's last completion and prepends it to
// the job's history
func (s *Store) RecordCompletion(ctx context.Context, c contracts.JobCompletion) error {
	if !s.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal completion: %w", err)
	}

	historyKey := s.client.Key("job", c.Job, "history")
	pipe := s.client.Redis().TxPipeline()
	pipe.Set(ctx, s.client.Key("job", c.Job, "last"), data, 0)
	pipe.LPush(ctx, historyKey, data)
	pipe.LTrim(ctx, historyKey, 0, historySize-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record completion of %s: %w", c.Job, err)
	}
	return nil
}

// LastCompletion returns the job's last completion, or nil when it never
// finished (or Redis is disabled)
func (s *Store) LastCompletion(ctx context.Context, job string) (*contracts.JobCompletion, error) {
	if !s.client.Enabled() {
		return nil, nil
	}

	data, err := s.client.Redis().Get(ctx, s.client.Key("job", job, "last")).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last completion of %s: %w", job, err)
	}

	var c contracts.JobCompletion
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal completion: %w", err)
	}
	return &c, nil
}

// History returns up to limit completions of job, newest first
func (s *Store) History(ctx context.Context, job string, limit int) ([]contracts.JobCompletion, error) {
	if !s.client.Enabled() || limit <= 0 {
		return nil, nil
	}

	items, err := s.client.Redis().LRange(ctx, s.client.Key("job", job, "history"), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get history of %s: %w", job, err)
	}

	out := make([]contracts.JobCompletion, 0, len(items))
	for _, item := range items {
		var c contracts.JobCompletion
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			return nil, fmt.Errorf("unmarshal completion: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}
