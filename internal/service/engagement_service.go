package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync"
	"go.uber.org/zap"

	"github.com/spec-kit/community-bot/internal/config"
	"github.com/spec-kit/community-bot/internal/domain"
	"github.com/spec-kit/community-bot/internal/events"
	"github.com/spec-kit/community-bot/internal/observability"
	"github.com/spec-kit/community-bot/internal/repository"
	apperrors "github.com/spec-kit/community-bot/pkg/util"
)

// EngagementDependencies bundles collaborators for the engagement ledger.
type EngagementDependencies struct {
	Store      repository.LedgerStore
	Dispatcher events.Dispatcher
	Clock      clockwork.Clock
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Config     config.EngagementConfig
}

// EngagementService converts qualifying activity into experience and levels.
type EngagementService struct {
	store   repository.LedgerStore
	events  eventPublisher
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
	cfg     config.EngagementConfig

	mu          sync.Mutex
	records     map[string]*domain.EngagementRecord
	lastContent map[string]string
	// cooldowns maps user id to the end of its window. A window is over once
	// the clock passes its end; a scheduled callback then drops the entry.
	cooldowns *xsync.MapOf[string, time.Time]

	persistMu sync.Mutex
}

// NewEngagementService constructs the service with an empty ledger.
func NewEngagementService(deps EngagementDependencies) *EngagementService {
	clk := deps.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngagementService{
		store:       deps.Store,
		events:      eventPublisher{dispatcher: deps.Dispatcher, clock: clk, logger: logger},
		clock:       clk,
		logger:      logger,
		metrics:     deps.Metrics,
		cfg:         deps.Config,
		records:     make(map[string]*domain.EngagementRecord),
		lastContent: make(map[string]string),
		cooldowns:   xsync.NewMapOf[time.Time](),
	}
}

// Load replaces the in-memory ledger with the persisted one.
func (s *EngagementService) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	loaded, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	records := make(map[string]*domain.EngagementRecord, len(loaded))
	for userID, record := range loaded {
		record := record
		record.UserID = userID
		records[userID] = &record
	}
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	s.logger.Info("engagement ledger loaded", zap.Int("records", len(records)))
	return nil
}

// RecordActivity scores one activity sample. It returns a level-up event when
// the sample crossed the user's threshold and nil when the sample was
// rejected or awarded XP without a level change.
//
// When persisting fails the in-memory state is kept, the event is still
// returned and the error carries CodePersistenceFailure.
func (s *EngagementService) RecordActivity(ctx context.Context, sample domain.ActivitySample) (*domain.LevelUpEvent, error) {
	content := strings.TrimSpace(sample.Content)
	length := utf8.RuneCountInString(content)
	if sample.UserID == "" || length < s.cfg.MinLength {
		s.reject(sample.UserID, "too_short")
		return nil, nil
	}

	s.mu.Lock()
	if s.InCooldown(sample.UserID) {
		s.mu.Unlock()
		s.reject(sample.UserID, "cooldown")
		return nil, nil
	}
	if last, seen := s.lastContent[sample.UserID]; seen && last == content {
		s.mu.Unlock()
		s.reject(sample.UserID, "duplicate")
		return nil, nil
	}
	s.lastContent[sample.UserID] = content
	s.startCooldown(sample.UserID)

	record, ok := s.records[sample.UserID]
	if !ok {
		record = &domain.EngagementRecord{UserID: sample.UserID}
		s.records[sample.UserID] = record
	}
	award := s.Award(length)
	record.XP += award

	var levelUp *domain.LevelUpEvent
	if needed := s.NeededXP(record.Level); record.XP >= needed {
		overflow := record.XP - needed
		record.Level++
		record.XP = 0
		if s.cfg.CarryOverflow {
			record.XP = overflow
		}
		levelUp = &domain.LevelUpEvent{UserID: sample.UserID, ChannelID: sample.ChannelID, NewLevel: record.Level}
	}
	s.mu.Unlock()

	s.metrics.Add(observability.CounterXPAwarded, int64(award))
	persistErr := s.persist(ctx)

	if levelUp != nil {
		s.metrics.Incr(observability.CounterLevelUps)
		s.logger.Info("level up", zap.String("user_id", levelUp.UserID), zap.Int("level", levelUp.NewLevel))
		s.events.publish(ctx, events.Event{
			Type:    events.EventLevelUp,
			UserID:  levelUp.UserID,
			Payload: events.LevelUpPayload{NewLevel: levelUp.NewLevel, ChannelID: levelUp.ChannelID},
		})
	}
	if persistErr != nil {
		return levelUp, apperrors.NewPersistenceFailure(persistErr)
	}
	return levelUp, nil
}

// GetRecord returns the user's record if one exists.
func (s *EngagementService) GetRecord(userID string) (domain.EngagementRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[userID]
	if !ok {
		return domain.EngagementRecord{}, false
	}
	return *record, true
}

// TopN returns up to n records by level, then xp, both descending. Ties
// fall back to user id so the order is stable.
func (s *EngagementService) TopN(n int) []domain.EngagementRecord {
	if n <= 0 {
		return []domain.EngagementRecord{}
	}
	ranked := s.ranked()
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Rank returns the user's 1-based leaderboard position.
func (s *EngagementService) Rank(userID string) (int, bool) {
	for i, record := range s.ranked() {
		if record.UserID == userID {
			return i + 1, true
		}
	}
	return 0, false
}

// InCooldown reports whether the user's samples are currently suppressed.
func (s *EngagementService) InCooldown(userID string) bool {
	until, ok := s.cooldowns.Load(userID)
	return ok && s.clock.Now().Before(until)
}

// Award is the XP granted for an accepted sample of the given rune length.
func (s *EngagementService) Award(length int) int {
	award := s.cfg.BaseAward
	if s.cfg.CharsPerXP > 0 {
		award += length / s.cfg.CharsPerXP
	}
	if award > s.cfg.MaxAward {
		award = s.cfg.MaxAward
	}
	if award < 0 {
		return 0
	}
	return award
}

// NeededXP is the XP required to leave level.
func (s *EngagementService) NeededXP(level int) int {
	needed := s.cfg.CurveA*level*level + s.cfg.CurveB*level + s.cfg.CurveC
	if needed < 1 {
		return 1
	}
	return needed
}

func (s *EngagementService) ranked() []domain.EngagementRecord {
	s.mu.Lock()
	out := make([]domain.EngagementRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, *record)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		if out[i].XP != out[j].XP {
			return out[i].XP > out[j].XP
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// startCooldown must be called with s.mu held.
func (s *EngagementService) startCooldown(userID string) {
	if s.cfg.Cooldown <= 0 {
		return
	}
	until := s.clock.Now().Add(s.cfg.Cooldown)
	s.cooldowns.Store(userID, until)
	s.clock.AfterFunc(s.cfg.Cooldown, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if current, ok := s.cooldowns.Load(userID); ok && current.Equal(until) {
			s.cooldowns.Delete(userID)
		}
	})
}

// persist overwrites the store with the current state. Saves are serialized
// and each one snapshots after acquiring the lock, so the last save to
// finish always holds the newest state.
func (s *EngagementService) persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	snapshot := make(map[string]domain.EngagementRecord, len(s.records))
	for userID, record := range s.records {
		snapshot[userID] = *record
	}
	s.mu.Unlock()

	if err := s.store.Save(ctx, snapshot); err != nil {
		s.metrics.Incr(observability.CounterLedgerSaveErrors)
		s.logger.Error("engagement ledger save failed", zap.Int("records", len(snapshot)), zap.Error(err))
		return err
	}
	return nil
}

func (s *EngagementService) reject(userID, reason string) {
	s.metrics.Incr(observability.CounterSamplesRejected)
	s.logger.Debug("activity sample rejected", zap.String("user_id", userID), zap.String("reason", reason))
}
