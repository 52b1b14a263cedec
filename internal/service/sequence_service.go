package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"referharmony/internal/domain/repository"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// Redis key prefix for the per-month referral sequence
	RedisSequenceKeyPrefix = "referral:seq:"

	// Month keys are dead once the month ends; keep them around long
	// enough for stragglers, then let Redis reclaim them
	sequenceKeyTTL = 62 * 24 * time.Hour
)

// SequenceService allocates the monthly referral sequence.
//
// The counter lives in Redis (atomic INCR per month key) so concurrent
// creations never compute the same sequence. The key is seeded from the
// database on startup and re-seeded on demand when a unique-key conflict
// reveals a stale counter. When Redis is down entirely the service falls
// back to count-in-month + 1; the race that opens up is absorbed by the
// unique index on referral_number plus retry in the caller.
type SequenceService struct {
	db           *gorm.DB
	redisClient  *redis.Client
	log          *logrus.Logger
	referralRepo repository.ReferralRepository

	// Serializes re-seeding so concurrent conflict retries do not
	// clobber each other's SET
	resyncMu sync.Mutex
}

func NewSequenceService(db *gorm.DB, redisClient *redis.Client, log *logrus.Logger, referralRepo repository.ReferralRepository) *SequenceService {
	return &SequenceService{
		db:           db,
		redisClient:  redisClient,
		log:          log,
		referralRepo: referralRepo,
	}
}

// SyncOnStartup seeds the current month's counter from the database.
// Should be called before accepting traffic; a failure is non-fatal
// because Next falls back to counting.
func (s *SequenceService) SyncOnStartup(ctx context.Context) error {
	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		s.log.Warnf("Redis is not available, skipping sequence sync: %+v", err)
		return fmt.Errorf("redis ping failed: %w", err)
	}

	count, err := s.ResyncMonth(ctx, time.Now())
	if err != nil {
		return err
	}

	s.log.Infof("Referral sequence synced: month=%s, count=%d", monthKeySuffix(time.Now()), count)
	return nil
}

// Next returns the next sequence number for the month containing now.
func (s *SequenceService) Next(ctx context.Context, now time.Time) (int64, error) {
	key := s.monthKey(now)

	seq, err := s.redisClient.Incr(ctx, key).Result()
	if err != nil {
		s.log.Warnf("Redis sequence INCR failed, falling back to count: %+v", err)
		return s.nextFromCount(ctx, now)
	}

	// Refresh TTL so an active month key never expires mid-month
	if err := s.redisClient.Expire(ctx, key, sequenceKeyTTL).Err(); err != nil {
		s.log.Debugf("Failed to refresh TTL for %s: %+v", key, err)
	}

	return seq, nil
}

// ResyncMonth re-seeds the month counter from the database count and
// returns it. Called on startup and after a referral-number conflict,
// which indicates the counter fell behind the table.
func (s *SequenceService) ResyncMonth(ctx context.Context, now time.Time) (int64, error) {
	s.resyncMu.Lock()
	defer s.resyncMu.Unlock()

	start, end := MonthRange(now)
	count, err := s.referralRepo.CountByCreatedRange(s.db.WithContext(ctx), start, end)
	if err != nil {
		s.log.Warnf("Failed to count referrals for sequence resync: %+v", err)
		return 0, fmt.Errorf("count referrals in month: %w", err)
	}

	key := s.monthKey(now)
	if err := s.redisClient.Set(ctx, key, count, sequenceKeyTTL).Err(); err != nil {
		s.log.Warnf("Failed to seed sequence key %s: %+v", key, err)
		return count, fmt.Errorf("seed sequence key: %w", err)
	}

	return count, nil
}

// nextFromCount is the Redis-less fallback: count-then-assign, racy by
// construction, relies on the unique index to reject collisions.
func (s *SequenceService) nextFromCount(ctx context.Context, now time.Time) (int64, error) {
	start, end := MonthRange(now)
	count, err := s.referralRepo.CountByCreatedRange(s.db.WithContext(ctx), start, end)
	if err != nil {
		return 0, fmt.Errorf("count referrals in month: %w", err)
	}
	return count + 1, nil
}

func (s *SequenceService) monthKey(t time.Time) string {
	return RedisSequenceKeyPrefix + monthKeySuffix(t)
}

func monthKeySuffix(t time.Time) string {
	return t.Format("200601")
}

// MonthRange returns the calendar month containing t as an inclusive
// start and exclusive end.
func MonthRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}
