// Package velocity counts how often a lead's phone number has been seen
// recently, so repeat submissions can be penalised.
package velocity

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/agencysim/internal/clock"
	"github.com/opensource-finance/agencysim/internal/domain"
)

// DefaultWindow is the duplicate look-back used when none is configured.
const DefaultWindow = 30 * 24 * time.Hour

// Service counts duplicate leads by phone number.
type Service struct {
	repo   domain.Repository
	cache  domain.Cache
	window time.Duration
	clock  clock.Clock
}

// NewService creates a new velocity service.
// The repository is authoritative when present; otherwise the cache counter
// is used. A zero window uses DefaultWindow.
func NewService(repo domain.Repository, cache domain.Cache, window time.Duration, clk clock.Clock) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		window: window,
		clock:  clock.OrReal(clk),
	}
}

// DuplicateCount returns how many other leads in the window share phone.
// Earlier scores of leadID itself never count, so re-scoring a lead leaves
// its count unchanged. Leads without a usable phone number are never
// duplicates.
func (s *Service) DuplicateCount(ctx context.Context, tenantID, leadID, phone string) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	phone = NormalizePhone(phone)
	if phone == "" {
		return 0, nil
	}

	if s.repo != nil {
		return s.countFromRepo(ctx, tenantID, leadID, phone)
	}

	if s.cache != nil {
		return s.countFromCache(ctx, tenantID, leadID, phone)
	}

	return 0, fmt.Errorf("no data source available")
}

// countFromRepo counts other leads scored in the window.
func (s *Service) countFromRepo(ctx context.Context, tenantID, leadID, phone string) (int64, error) {
	since := s.clock.Now().Add(-s.window)
	count, err := s.repo.CountLeadsByPhone(ctx, tenantID, phone, leadID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return count, nil
}

// countFromCache records the first sighting of each lead and returns the
// number of leads seen before it. A lead seen again gets the count stored
// at its first sighting.
func (s *Service) countFromCache(ctx context.Context, tenantID, leadID, phone string) (int64, error) {
	seenKey := ""
	if leadID != "" {
		seenKey = "lead-seen:" + phone + ":" + leadID
		raw, err := s.cache.Get(ctx, tenantID, seenKey)
		if err != nil {
			return 0, fmt.Errorf("failed to read lead sighting: %w", err)
		}
		if raw != nil {
			if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
				return n, nil
			}
		}
	}

	n, err := s.cache.IncrementCounter(ctx, tenantID, "lead-phone:"+phone, s.window)
	if err != nil {
		return 0, fmt.Errorf("failed to increment lead counter: %w", err)
	}
	earlier := n - 1

	if seenKey != "" {
		if err := s.cache.Set(ctx, tenantID, seenKey, []byte(strconv.FormatInt(earlier, 10)), s.window); err != nil {
			return 0, fmt.Errorf("failed to record lead sighting: %w", err)
		}
	}
	return earlier, nil
}

// NormalizePhone keeps the last ten digits of a phone number, dropping
// formatting and a leading country code. Fewer than seven digits yields "".
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 7 {
		return ""
	}
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}
