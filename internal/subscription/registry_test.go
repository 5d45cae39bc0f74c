package subscription

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rickgao/polymarket-realtime/internal/auth"
	"github.com/rickgao/polymarket-realtime/internal/frame"
	"github.com/rickgao/polymarket-realtime/internal/model"
)

func noopCallbacks() Callbacks {
	return Callbacks{OnMarket: func(model.MarketEvent) error { return nil }}
}

func testCreds() *auth.Credentials {
	return &auth.Credentials{Key: "k1", Secret: "c2VjcmV0", Passphrase: "p1"}
}

func TestRegistry_AddMarket(t *testing.T) {
	r := NewRegistry(nil)

	h, err := r.Add(KindMarket, Filter{TokenIDs: []string{"tok1", " tok2 ", "tok1"}}, noopCallbacks())
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if h == "" {
		t.Fatal("handle is empty")
	}

	sub, ok := r.Get(h)
	if !ok {
		t.Fatal("Get returned false for new handle")
	}
	if !sub.Active() {
		t.Error("new subscription should be active")
	}
	got := sub.TokenIDs()
	if len(got) != 2 || got[0] != "tok1" || got[1] != "tok2" {
		t.Errorf("TokenIDs = %v, want [tok1 tok2]", got)
	}
	if len(r.Lookup("tok2")) != 1 {
		t.Errorf("Lookup(tok2) = %d subs, want 1", len(r.Lookup("tok2")))
	}
}

func TestRegistry_AddValidation(t *testing.T) {
	r := NewRegistry(nil)

	tests := []struct {
		name    string
		kind    Kind
		filter  Filter
		cb      Callbacks
		wantErr error
	}{
		{"no callbacks", KindMarket, Filter{TokenIDs: []string{"t"}}, Callbacks{}, ErrNoCallbacks},
		{"no tokens", KindMarket, Filter{}, noopCallbacks(), ErrEmptyFilter},
		{"blank token", KindMarket, Filter{TokenIDs: []string{"t", " "}}, noopCallbacks(), frame.ErrInvalidFilter},
		{"market with creds", KindMarket, Filter{TokenIDs: []string{"t"}, Credentials: testCreds()}, noopCallbacks(), frame.ErrInvalidFilter},
		{"user without creds", KindUser, Filter{}, noopCallbacks(), frame.ErrInvalidFilter},
		{"user partial creds", KindUser, Filter{Credentials: &auth.Credentials{Key: "k"}}, noopCallbacks(), auth.ErrMissingSecret},
		{"unknown kind", Kind(9), Filter{}, noopCallbacks(), ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Add(tt.kind, tt.filter, tt.cb)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Add() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if r.Len() != 0 {
		t.Errorf("Len() = %d after failed adds, want 0", r.Len())
	}
}

func TestRegistry_LookupMultipleInOrder(t *testing.T) {
	r := NewRegistry(nil)

	h1, _ := r.Add(KindMarket, Filter{TokenIDs: []string{"tok1"}}, noopCallbacks())
	h2, _ := r.Add(KindMarket, Filter{TokenIDs: []string{"tok1", "tok2"}}, noopCallbacks())

	subs := r.Lookup("tok1")
	if len(subs) != 2 {
		t.Fatalf("Lookup(tok1) = %d subs, want 2", len(subs))
	}
	if subs[0].Handle() != h1 || subs[1].Handle() != h2 {
		t.Errorf("Lookup order = [%s %s], want [%s %s]", subs[0].Handle(), subs[1].Handle(), h1, h2)
	}
}

func TestRegistry_RemoveIdempotent(t *testing.T) {
	r := NewRegistry(nil)

	h, _ := r.Add(KindMarket, Filter{TokenIDs: []string{"tok1"}}, noopCallbacks())

	sub, orphaned := r.Remove(h)
	if sub == nil {
		t.Fatal("first Remove returned nil subscription")
	}
	if sub.Active() {
		t.Error("removed subscription still active")
	}
	if len(orphaned) != 1 || orphaned[0] != "tok1" {
		t.Errorf("orphaned = %v, want [tok1]", orphaned)
	}

	sub, orphaned = r.Remove(h)
	if sub != nil || orphaned != nil {
		t.Errorf("second Remove = %v, %v, want nil, nil", sub, orphaned)
	}
	if len(r.Lookup("tok1")) != 0 {
		t.Error("Lookup after Remove should be empty")
	}
}

func TestRegistry_RemoveSharedKey(t *testing.T) {
	r := NewRegistry(nil)

	h1, _ := r.Add(KindMarket, Filter{TokenIDs: []string{"tok1", "tok2"}}, noopCallbacks())
	h2, _ := r.Add(KindMarket, Filter{TokenIDs: []string{"tok2"}}, noopCallbacks())

	_, orphaned := r.Remove(h1)
	if len(orphaned) != 1 || orphaned[0] != "tok1" {
		t.Errorf("orphaned = %v, want [tok1]", orphaned)
	}

	subs := r.Lookup("tok2")
	if len(subs) != 1 || subs[0].Handle() != h2 {
		t.Errorf("Lookup(tok2) = %v, want only %s", subs, h2)
	}
}

func TestRegistry_RemoveZeroesCredentials(t *testing.T) {
	r := NewRegistry(nil)
	creds := testCreds()

	h, err := r.Add(KindUser, Filter{Credentials: creds}, noopCallbacks())
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	sub, _ := r.Get(h)
	if sub.Redacted() == "<none>" {
		t.Fatal("credentials missing before Remove")
	}

	r.Remove(h)

	if sub.Redacted() != "<none>" {
		t.Errorf("credentials not zeroed after Remove: %s", sub.Redacted())
	}
	if _, err := sub.SubscribeFrame(); !errors.Is(err, ErrInactive) {
		t.Errorf("SubscribeFrame after Remove error = %v, want ErrInactive", err)
	}
	if creds.Key != "k1" {
		t.Error("caller's credentials were mutated")
	}
}

func TestSubscription_MatchesMarket(t *testing.T) {
	r := NewRegistry(nil)

	tests := []struct {
		name    string
		markets []string
		market  string
		want    bool
	}{
		{"no filter", nil, "0xA", true},
		{"no filter empty market", nil, "", true},
		{"listed", []string{"0xA", "0xB"}, "0xB", true},
		{"case insensitive", []string{"0xAbC"}, "0xabc", true},
		{"not listed", []string{"0xA"}, "0xB", false},
		{"missing market", []string{"0xA"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := r.Add(KindUser, Filter{Credentials: testCreds(), Markets: tt.markets}, noopCallbacks())
			if err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			sub, _ := r.Get(h)
			if got := sub.MatchesMarket(tt.market); got != tt.want {
				t.Errorf("MatchesMarket(%q) = %v, want %v", tt.market, got, tt.want)
			}
		})
	}
}

func TestRegistry_ListActiveSnapshot(t *testing.T) {
	r := NewRegistry(nil)

	var handles []Handle
	for _, tok := range []string{"a", "b", "c"} {
		h, _ := r.Add(KindMarket, Filter{TokenIDs: []string{tok}}, noopCallbacks())
		handles = append(handles, h)
	}

	snap := r.ListActive()
	r.Remove(handles[1])
	r.Add(KindMarket, Filter{TokenIDs: []string{"d"}}, noopCallbacks())

	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d, want 3", len(snap))
	}
	for i, sub := range snap {
		if sub.Handle() != handles[i] {
			t.Errorf("snapshot[%d] = %s, want %s", i, sub.Handle(), handles[i])
		}
	}

	if got := len(r.ListActive()); got != 3 {
		t.Errorf("ListActive() len = %d, want 3", got)
	}
}

func TestRegistry_Purge(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(KindMarket, Filter{TokenIDs: []string{"a"}}, noopCallbacks())
	h, _ := r.Add(KindUser, Filter{Credentials: testCreds()}, noopCallbacks())
	sub, _ := r.Get(h)

	purged := r.Purge()
	if len(purged) != 2 {
		t.Errorf("Purge() = %d subs, want 2", len(purged))
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Purge, want 0", r.Len())
	}
	if sub.Active() || sub.Redacted() != "<none>" {
		t.Error("purged user subscription still holds state")
	}
}

func TestRegistry_ReplayFrames(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(KindMarket, Filter{TokenIDs: []string{"tok1"}}, noopCallbacks())
	hUser, _ := r.Add(KindUser, Filter{Credentials: testCreds(), Markets: []string{"0xc"}}, noopCallbacks())

	frames, err := r.ReplayFrames()
	if err != nil {
		t.Fatalf("ReplayFrames failed: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}

	var req frame.SubscriptionRequest
	if err := json.Unmarshal(frames[1], &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Type != frame.ChannelUser || req.Auth == nil || req.Auth.APIKey != "k1" {
		t.Errorf("user replay frame = %s", frames[1])
	}

	sub, _ := r.Get(hUser)
	original, _ := sub.SubscribeFrame()
	if string(original) != string(frames[1]) {
		t.Errorf("replay %s differs from original %s", frames[1], original)
	}

	r.Remove(hUser)
	frames, _ = r.ReplayFrames()
	if len(frames) != 1 {
		t.Errorf("got %d frames after Remove, want 1", len(frames))
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := r.Add(KindMarket, Filter{TokenIDs: []string{"tok"}}, noopCallbacks())
			if err != nil {
				t.Errorf("Add failed: %v", err)
				return
			}
			r.Lookup("tok")
			r.ListActive()
			r.Remove(h)
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}
