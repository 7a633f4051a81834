package watchlist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"TapeHeat/internal/service/ttlstore"
)

const (
	ListWatch  = "watch"
	ListIgnore = "ignore"
)

// Store keeps the watch and ignore lists in redis sets so they survive
// restarts and can be edited from outside the process. Membership checks sit
// on the dispatch path, so positive and negative answers are memoized for a
// short TTL and invalidated on mutation.
type Store struct {
	cli  *redis.Client
	memo *ttlstore.Store[bool]
}

type Config struct {
	Addr     string        `yaml:"addr" validate:"required"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	MemoTTL  time.Duration `yaml:"memo_ttl" default:"5s"`
}

func New(cfg Config) *Store {
	if cfg.MemoTTL <= 0 {
		cfg.MemoTTL = 5 * time.Second
	}
	cli := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	return &Store{cli: cli, memo: ttlstore.New[bool](cfg.MemoTTL)}
}

// NewWithClient wraps an existing client, for tests against miniredis.
func NewWithClient(cli *redis.Client, memoTTL time.Duration) *Store {
	if memoTTL <= 0 {
		memoTTL = 5 * time.Second
	}
	return &Store{cli: cli, memo: ttlstore.New[bool](memoTTL)}
}

func key(list string) string {
	return "tapeheat:list:" + list
}

func memoKey(list, ticker string) string {
	return list + ":" + ticker
}

func normalize(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func (s *Store) Add(ctx context.Context, list, ticker string) error {
	ticker = normalize(ticker)
	if err := s.cli.SAdd(ctx, key(list), ticker).Err(); err != nil {
		return fmt.Errorf("watchlist add %s/%s: %w", list, ticker, err)
	}
	s.memo.Set(memoKey(list, ticker), true)
	return nil
}

func (s *Store) Remove(ctx context.Context, list, ticker string) error {
	ticker = normalize(ticker)
	if err := s.cli.SRem(ctx, key(list), ticker).Err(); err != nil {
		return fmt.Errorf("watchlist remove %s/%s: %w", list, ticker, err)
	}
	s.memo.Set(memoKey(list, ticker), false)
	return nil
}

func (s *Store) Contains(ctx context.Context, list, ticker string) (bool, error) {
	ticker = normalize(ticker)
	if hit, ok := s.memo.Get(memoKey(list, ticker)); ok {
		return hit, nil
	}
	member, err := s.cli.SIsMember(ctx, key(list), ticker).Result()
	if err != nil {
		return false, fmt.Errorf("watchlist contains %s/%s: %w", list, ticker, err)
	}
	s.memo.Set(memoKey(list, ticker), member)
	return member, nil
}

func (s *Store) Members(ctx context.Context, list string) ([]string, error) {
	members, err := s.cli.SMembers(ctx, key(list)).Result()
	if err != nil {
		return nil, fmt.Errorf("watchlist members %s: %w", list, err)
	}
	return members, nil
}

func (s *Store) Close() error {
	return s.cli.Close()
}
