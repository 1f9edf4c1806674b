package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/repository"
)

const (
	bruteForceHintPrefix = "bruteforce:"
	bruteForceHintTTL    = 30 * time.Second
)

// BruteForceService tracks failed logins per username and decides
// lockout. The database-backed counter is the single source of truth;
// the Redis entries are a non-authoritative read-through hint consulted
// only by IsUnderAttack and invalidated on every mutation.
type BruteForceService struct {
	users      repository.UserRepository
	hints      *redis.Client
	logger     *zap.Logger
	threshold  int
	dispatcher events.Dispatcher
}

// NewBruteForceService builds the guard. hints may be nil.
func NewBruteForceService(users repository.UserRepository, hints *redis.Client, logger *zap.Logger, threshold int) *BruteForceService {
	if threshold <= 0 {
		threshold = 5
	}
	return &BruteForceService{users: users, hints: hints, logger: logger, threshold: threshold}
}

// RegisterHandlers subscribes the guard to authentication outcome events.
func (s *BruteForceService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	s.dispatcher = dispatcher
	dispatcher.Subscribe(events.EventLoginFailed, func(ctx context.Context, event events.Event) error {
		s.RegisterFailure(ctx, event.Username)
		return nil
	})
	dispatcher.Subscribe(events.EventLoginSucceeded, func(ctx context.Context, event events.Event) error {
		s.RegisterSuccess(ctx, event.Username)
		return nil
	})
}

// RegisterFailure advances the failure counter for the username. A
// missing or already locked account is a logged no-op so the caller's
// response cannot reveal whether the username exists.
func (s *BruteForceService) RegisterFailure(ctx context.Context, username string) {
	if strings.TrimSpace(username) == "" {
		return
	}

	locked, err := s.users.IncrementFailedAttempts(ctx, username, s.threshold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("login failure against missing or locked account",
				zap.String("username", username))
		} else {
			s.logger.Error("failed to record login failure",
				zap.String("username", username), zap.Error(err))
		}
		return
	}

	s.invalidateHint(ctx, username)

	if locked {
		s.logger.Info("account locked after repeated login failures",
			zap.String("username", username))
		if s.dispatcher != nil {
			_ = s.dispatcher.Publish(ctx, events.Event{
				Type:      events.EventAccountLocked,
				Username:  username,
				Timestamp: time.Now(),
			})
		}
	} else {
		s.logger.Debug("login failure recorded", zap.String("username", username))
	}
}

// RegisterSuccess resets the counter, records the login time and unlocks
// the account. Missing users are a no-op.
func (s *BruteForceService) RegisterSuccess(ctx context.Context, username string) {
	if strings.TrimSpace(username) == "" {
		return
	}

	if err := s.users.ResetFailedAttempts(ctx, username); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("login success for unknown account", zap.String("username", username))
		} else {
			s.logger.Error("failed to reset login failures",
				zap.String("username", username), zap.Error(err))
		}
		return
	}

	s.invalidateHint(ctx, username)
}

// IsUnderAttack reports whether the stored failure count strictly exceeds
// the threshold, independent of the locked flag. Callers may use it to
// slow responses before the lockout transition happens.
func (s *BruteForceService) IsUnderAttack(ctx context.Context, username string) bool {
	if strings.TrimSpace(username) == "" {
		return false
	}

	if hit, ok := s.readHint(ctx, username); ok {
		return hit
	}

	excess, err := s.users.HasExcessFailedAttempts(ctx, username, s.threshold)
	if err != nil {
		s.logger.Error("failed to query login failures",
			zap.String("username", username), zap.Error(err))
		return false
	}

	s.writeHint(ctx, username, excess)
	return excess
}

func (s *BruteForceService) readHint(ctx context.Context, username string) (bool, bool) {
	if s.hints == nil {
		return false, false
	}
	val, err := s.hints.Get(ctx, bruteForceHintPrefix+username).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

func (s *BruteForceService) writeHint(ctx context.Context, username string, underAttack bool) {
	if s.hints == nil {
		return
	}
	val := "0"
	if underAttack {
		val = "1"
	}
	if err := s.hints.Set(ctx, bruteForceHintPrefix+username, val, bruteForceHintTTL).Err(); err != nil {
		s.logger.Debug("unable to cache brute force hint", zap.Error(err))
	}
}

func (s *BruteForceService) invalidateHint(ctx context.Context, username string) {
	if s.hints == nil {
		return
	}
	if err := s.hints.Del(ctx, bruteForceHintPrefix+username).Err(); err != nil {
		s.logger.Debug("unable to invalidate brute force hint", zap.Error(err))
	}
}
