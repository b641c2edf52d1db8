package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

var (
	// ErrInvalidPrice indicates the upstream source answered with a
	// non-positive price.
	ErrInvalidPrice = errors.New("oracle: non-positive price answer")
	// ErrStalePrice indicates the latest round is older than the configured
	// freshness window.
	ErrStalePrice = errors.New("oracle: price answer too old")
	// ErrNoRound indicates the source has no round data yet.
	ErrNoRound = errors.New("oracle: no round data available")
)

// Answers arrive scaled by 1e8; valuation arithmetic runs at 1e18, so every
// usable answer is rescaled once on the way in.
var (
	answerScale   = new(big.Int).Exp(big.NewInt(10), big.NewInt(8), nil)
	priceScale    = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	answerToPrice = new(big.Int).Quo(priceScale, answerScale)
)

// PriceScale returns the 1e18 factor applied to authoritative prices.
func PriceScale() *big.Int {
	return new(big.Int).Set(priceScale)
}

// RoundData mirrors the aggregator round shape reported by the upstream
// source. Only Answer is consumed by the decision path; the remaining fields
// feed the optional staleness check and telemetry.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       uint64
	UpdatedAt       uint64
	AnsweredInRound *big.Int
}

// RoundSource resolves the latest round from an authoritative price source.
type RoundSource interface {
	LatestRoundData() (RoundData, error)
}

// Feed adapts a round source into the positive, 1e18-scaled price the vault
// engine consumes. A zero maxAge disables the staleness check and the latest
// answer is trusted as-is.
type Feed struct {
	source RoundSource
	maxAge time.Duration
	clock  func() time.Time
}

// NewFeed constructs a feed over the supplied source. maxAge bounds answer
// staleness when positive.
func NewFeed(source RoundSource, maxAge time.Duration) *Feed {
	return &Feed{source: source, maxAge: maxAge, clock: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (f *Feed) SetClock(clock func() time.Time) {
	if f == nil || clock == nil {
		return
	}
	f.clock = clock
}

// AuthoritativePrice returns the latest answer rescaled to 1e18, failing when
// the answer is non-positive or, with MaxAge configured, stale.
func (f *Feed) AuthoritativePrice() (*big.Int, error) {
	if f == nil || f.source == nil {
		return nil, ErrNoRound
	}
	round, err := f.source.LatestRoundData()
	if err != nil {
		return nil, fmt.Errorf("oracle: latest round: %w", err)
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if f.maxAge > 0 {
		updated := time.Unix(int64(round.UpdatedAt), 0)
		if f.clock().Sub(updated) > f.maxAge {
			return nil, ErrStalePrice
		}
	}
	return new(big.Int).Mul(round.Answer, answerToPrice), nil
}

// ManualSource is an in-memory round source used by tests and for manual
// overrides during incident response.
type ManualSource struct {
	mu    sync.RWMutex
	round RoundData
	set   bool
	fail  error
}

// NewManualSource constructs an empty manual source.
func NewManualSource() *ManualSource {
	return &ManualSource{}
}

// SetAnswer records an answer in 1e8 scale with the supplied update time.
func (m *ManualSource) SetAnswer(answer *big.Int, updatedAt time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	round := RoundData{
		RoundID:   big.NewInt(1),
		UpdatedAt: uint64(updatedAt.Unix()),
	}
	if m.set {
		round.RoundID = new(big.Int).Add(m.round.RoundID, big.NewInt(1))
	}
	round.StartedAt = round.UpdatedAt
	round.AnsweredInRound = new(big.Int).Set(round.RoundID)
	if answer != nil {
		round.Answer = new(big.Int).Set(answer)
	}
	m.round = round
	m.set = true
	m.fail = nil
}

// FailWith forces subsequent reads to return the supplied error.
func (m *ManualSource) FailWith(err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// LatestRoundData implements the RoundSource interface.
func (m *ManualSource) LatestRoundData() (RoundData, error) {
	if m == nil {
		return RoundData{}, ErrNoRound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fail != nil {
		return RoundData{}, m.fail
	}
	if !m.set {
		return RoundData{}, ErrNoRound
	}
	round := m.round
	if round.RoundID != nil {
		round.RoundID = new(big.Int).Set(round.RoundID)
	}
	if round.Answer != nil {
		round.Answer = new(big.Int).Set(round.Answer)
	}
	if round.AnsweredInRound != nil {
		round.AnsweredInRound = new(big.Int).Set(round.AnsweredInRound)
	}
	return round, nil
}
