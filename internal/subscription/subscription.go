package subscription

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/polymarket-realtime/internal/auth"
	"github.com/rickgao/polymarket-realtime/internal/frame"
)

// Subscription is one registered interest. It is owned by the Registry; other
// components hold pointers but never outlive its active flag.
type Subscription struct {
	handle    Handle
	kind      Kind
	seq       uint64
	tokenIDs  []string
	markets   []string
	callbacks Callbacks
	createdAt time.Time

	active atomic.Bool

	credMu sync.Mutex
	creds  auth.Credentials
}

// Handle returns the subscription's handle.
func (s *Subscription) Handle() Handle { return s.handle }

// Kind returns the subscription's channel kind.
func (s *Subscription) Kind() Kind { return s.kind }

// Callbacks returns the callback set.
func (s *Subscription) Callbacks() Callbacks { return s.callbacks }

// Active reports whether the subscription is still registered.
func (s *Subscription) Active() bool { return s.active.Load() }

// CreatedAt returns the registration time.
func (s *Subscription) CreatedAt() time.Time { return s.createdAt }

// TokenIDs returns a copy of the market filter.
func (s *Subscription) TokenIDs() []string {
	return append([]string(nil), s.tokenIDs...)
}

// Markets returns a copy of the user-channel market filter.
func (s *Subscription) Markets() []string {
	return append([]string(nil), s.markets...)
}

// MatchesMarket reports whether a user event for market passes the market
// filter. An empty filter matches every market. Condition ids compare
// case-insensitively.
func (s *Subscription) MatchesMarket(market string) bool {
	if len(s.markets) == 0 {
		return true
	}
	for _, m := range s.markets {
		if strings.EqualFold(m, market) {
			return true
		}
	}
	return false
}

// ChannelKeys returns the dispatch keys this subscription is indexed under.
func (s *Subscription) ChannelKeys() []string {
	if s.kind == KindUser {
		return []string{frame.UserChannelKey}
	}
	return s.TokenIDs()
}

// SubscribeFrame encodes the subscribe frame for this subscription. The same
// subscription always yields the same bytes, so a replay matches the original.
func (s *Subscription) SubscribeFrame() ([]byte, error) {
	if !s.Active() {
		return nil, ErrInactive
	}

	switch s.kind {
	case KindMarket:
		return frame.EncodeSubscribe(frame.ChannelMarket, frame.Filter{AssetIDs: s.tokenIDs}, nil)
	case KindUser:
		s.credMu.Lock()
		defer s.credMu.Unlock()
		if s.creds.IsZero() {
			return nil, ErrInactive
		}
		creds := s.creds
		return frame.EncodeSubscribe(frame.ChannelUser, frame.Filter{Markets: s.markets}, &creds)
	}
	return nil, ErrUnknownKind
}

// Redacted returns the credential key prefix for logging.
func (s *Subscription) Redacted() string {
	s.credMu.Lock()
	defer s.credMu.Unlock()
	return s.creds.Redacted()
}

func (s *Subscription) deactivate() {
	s.active.Store(false)
	s.credMu.Lock()
	s.creds.Zero()
	s.credMu.Unlock()
}
