package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/pta-board-spider/pkg/logging"
	"github.com/Sternrassler/pta-board-spider/pkg/model"
)

// ErrBoardNotFound indicates no board is stored for the contest.
var ErrBoardNotFound = errors.New("board not found")

// Key identifies one stored board document.
type Key struct {
	ContestID string
	Document  string
}

// String returns the Redis key.
// Format: board:<contest id>:<document>
//
// Example:
//
//	board:1809745162587521024:run
func (k Key) String() string {
	return "board:" + k.ContestID + ":" + k.Document
}

// RedisExporter stores board documents in Redis.
type RedisExporter struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisExporter creates an exporter. ttl <= 0 stores documents without expiry.
func NewRedisExporter(redisClient *redis.Client, ttl time.Duration) *RedisExporter {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisExporter{
		redis:  redisClient,
		ttl:    ttl,
		logger: logging.NewLogger("redis-export"),
	}
}

// Export implements Exporter. All documents are written in one transaction
// so readers never see a mix of two runs.
func (e *RedisExporter) Export(ctx context.Context, board *model.Board) (err error) {
	var docs map[string][]byte
	defer func() { recordExport("redis", docs, err) }()

	docs, err = Encode(board)
	if err != nil {
		return err
	}

	ttl := e.ttl
	if ttl < 0 {
		ttl = 0
	}

	_, err = e.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, name := range Documents {
			key := Key{ContestID: board.ContestID, Document: name}
			pipe.Set(ctx, key.String(), docs[name], ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis export: %w", err)
	}

	e.logger.Info().
		Str("contest_id", board.ContestID).
		Dur("ttl", ttl).
		Msg("Board stored")

	return nil
}

// Load reads a stored board back. Returns ErrBoardNotFound if any document
// is missing.
func (e *RedisExporter) Load(ctx context.Context, contestID string) (*model.Board, error) {
	keys := make([]string, len(Documents))
	for i, name := range Documents {
		keys[i] = Key{ContestID: contestID, Document: name}.String()
	}

	values, err := e.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	raw := make(map[string][]byte, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrBoardNotFound, keys[i])
		}
		raw[Documents[i]] = []byte(s)
	}

	board := &model.Board{ContestID: contestID}
	if err := json.Unmarshal(raw[DocumentConfig], &board.Contest); err != nil {
		return nil, fmt.Errorf("decode %s: %w", DocumentConfig, err)
	}
	if err := json.Unmarshal(raw[DocumentTeam], &board.Teams); err != nil {
		return nil, fmt.Errorf("decode %s: %w", DocumentTeam, err)
	}
	if err := json.Unmarshal(raw[DocumentRun], &board.Submissions); err != nil {
		return nil, fmt.Errorf("decode %s: %w", DocumentRun, err)
	}
	return board, nil
}
