package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nodewee/doc-structurer/pkg/logger"
	"github.com/nodewee/doc-structurer/pkg/types"
	"github.com/nodewee/doc-structurer/pkg/utils"
)

// Selector resolves one backend per request by probing the configured
// descriptors in operator-declared order. It never reorders the list: the
// first descriptor that answers its probe within its timeout wins.
//
// A bounded TTL cache of the last successful descriptor can be enabled as
// an optimization. The cached backend is still re-probed on every request;
// when it fails, selection falls through the declared order and the cache
// is updated.
type Selector struct {
	descriptors []types.BackendDescriptor
	strategies  StrategySet
	logger      *logger.Logger
	cacheTTL    time.Duration

	mu          sync.Mutex
	cachedIdx   int
	cachedUntil time.Time
}

// NewSelector creates a selector over an ordered descriptor list. A zero
// cacheTTL disables the cache.
func NewSelector(descriptors []types.BackendDescriptor, strategies StrategySet, log *logger.Logger, cacheTTL time.Duration) *Selector {
	return &Selector{
		descriptors: descriptors,
		strategies:  strategies,
		logger:      log,
		cacheTTL:    cacheTTL,
		cachedIdx:   -1,
	}
}

// Select returns the first available backend in priority order, or a
// no-backend error naming every unreachable candidate
func (s *Selector) Select(ctx context.Context) (Strategy, types.BackendDescriptor, error) {
	skip := -1
	var skipErr error
	if idx, ok := s.cachedCandidate(); ok {
		desc := s.descriptors[idx]
		strat := s.strategies[desc.Kind]
		err := s.probe(ctx, strat, desc)
		if err == nil {
			s.logger.Debug("Reusing cached backend %s", desc)
			return strat, desc, nil
		}
		s.logger.Warn("Cached backend %s failed its probe, falling through: %v", desc, err)
		s.invalidate()
		skip, skipErr = idx, err
	}

	var failures []string
	for i, desc := range s.descriptors {
		if i == skip {
			failures = append(failures, fmt.Sprintf("%s: %v", desc, skipErr))
			continue
		}
		strat, ok := s.strategies[desc.Kind]
		if !ok {
			failures = append(failures, fmt.Sprintf("%s: no strategy for kind", desc))
			continue
		}
		if err := s.probe(ctx, strat, desc); err != nil {
			s.logger.Warn("Backend %s failed its probe: %v", desc, err)
			failures = append(failures, fmt.Sprintf("%s: %v", desc, err))
			continue
		}
		s.logger.Debug("Selected backend %s", desc)
		s.remember(i)
		return strat, desc, nil
	}

	return nil, types.BackendDescriptor{}, utils.NewNoBackendError(
		"no backend available: "+strings.Join(failures, "; "), nil)
}

// probe runs the availability check bounded by the descriptor timeout
func (s *Selector) probe(ctx context.Context, strat Strategy, desc types.BackendDescriptor) error {
	probeCtx, cancel := context.WithTimeout(ctx, desc.Timeout())
	defer cancel()
	return strat.Probe(probeCtx, desc)
}

// Descriptors returns the configured descriptor list in priority order
func (s *Selector) Descriptors() []types.BackendDescriptor {
	return s.descriptors
}

// StrategyFor resolves the strategy for a descriptor kind
func (s *Selector) StrategyFor(kind types.BackendKind) (Strategy, bool) {
	strat, ok := s.strategies[kind]
	return strat, ok
}

func (s *Selector) cachedCandidate() (int, bool) {
	if s.cacheTTL <= 0 {
		return -1, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cachedIdx < 0 || time.Now().After(s.cachedUntil) {
		return -1, false
	}
	return s.cachedIdx, true
}

func (s *Selector) remember(idx int) {
	if s.cacheTTL <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachedIdx = idx
	s.cachedUntil = time.Now().Add(s.cacheTTL)
}

func (s *Selector) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachedIdx = -1
}
