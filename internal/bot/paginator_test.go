package bot

import (
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hitoshi/warnman/internal/model"
)

func threeRecords() []*model.WarnRecord {
	return []*model.WarnRecord{newRecord(1, "AAAAAAAA"), newRecord(2, "BBBBBBBB"), newRecord(3, "CCCCCCCC")}
}

func TestParseComponentID(t *testing.T) {
	tests := []struct {
		in         string
		wantID     string
		wantAction string
		wantOK     bool
	}{
		{"warnpage:abc:prev", "abc", actionPrev, true},
		{"warnpage:abc:next", "abc", actionNext, true},
		{"warnpage:abc:select", "abc", actionSelect, true},
		{"warnpage:abc:jump", "", "", false},
		{"warnpage::prev", "", "", false},
		{"other:abc:prev", "", "", false},
		{"warnpage:abc", "", "", false},
	}

	for _, tt := range tests {
		id, action, ok := parseComponentID(tt.in)
		if id != tt.wantID || action != tt.wantAction || ok != tt.wantOK {
			t.Errorf("parseComponentID(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.in, id, action, ok, tt.wantID, tt.wantAction, tt.wantOK)
		}
	}
}

func TestComponentID_RoundTrip(t *testing.T) {
	id, action, ok := parseComponentID(componentID("4f1c", actionSelect))
	if !ok || id != "4f1c" || action != actionSelect {
		t.Errorf("round trip = (%q, %q, %v)", id, action, ok)
	}
}

func TestPaginatorStore_Move(t *testing.T) {
	store := newPaginatorStore(time.Minute, nil)
	s := store.create("u1", threeRecords(), &discordgo.Interaction{})

	steps := []struct {
		action string
		values []string
		want   int
	}{
		{actionPrev, nil, 0},
		{actionNext, nil, 1},
		{actionNext, nil, 2},
		{actionNext, nil, 2},
		{actionSelect, []string{"0"}, 0},
		{actionSelect, []string{"2"}, 2},
	}

	for _, step := range steps {
		_, page, result := store.move(s.id, "u1", step.action, step.values)
		if result != moveOK {
			t.Fatalf("move(%s, %v) result = %v, want moveOK", step.action, step.values, result)
		}
		if page != step.want {
			t.Errorf("move(%s, %v) page = %d, want %d", step.action, step.values, page, step.want)
		}
	}
}

func TestPaginatorStore_Move_RejectsOtherUser(t *testing.T) {
	store := newPaginatorStore(time.Minute, nil)
	s := store.create("owner", threeRecords(), &discordgo.Interaction{})

	if _, _, result := store.move(s.id, "intruder", actionNext, nil); result != moveForbidden {
		t.Errorf("result = %v, want moveForbidden", result)
	}
	_, page, _ := store.move(s.id, "owner", actionPrev, nil)
	if page != 0 {
		t.Errorf("page = %d after a forbidden move, want 0", page)
	}
}

func TestPaginatorStore_Move_InvalidSelection(t *testing.T) {
	store := newPaginatorStore(time.Minute, nil)
	s := store.create("u1", threeRecords(), &discordgo.Interaction{})

	for _, values := range [][]string{nil, {"3"}, {"-1"}, {"x"}, {"0", "1"}} {
		if _, _, result := store.move(s.id, "u1", actionSelect, values); result != moveInvalid {
			t.Errorf("select %v result = %v, want moveInvalid", values, result)
		}
	}
}

func TestPaginatorStore_Move_UnknownSession(t *testing.T) {
	store := newPaginatorStore(time.Minute, nil)

	if _, _, result := store.move("missing", "u1", actionNext, nil); result != moveExpired {
		t.Errorf("result = %v, want moveExpired", result)
	}
}

func TestPaginatorStore_InteractionResetsTimeout(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newPaginatorStore(5*time.Minute, nil)
	store.now = func() time.Time { return now }

	s := store.create("u1", threeRecords(), &discordgo.Interaction{})

	now = now.Add(4 * time.Minute)
	if _, _, result := store.move(s.id, "u1", actionNext, nil); result != moveOK {
		t.Fatalf("result = %v, want moveOK", result)
	}

	// 最後の操作から4分しか経っていないので有効
	now = now.Add(4 * time.Minute)
	store.sweep()
	if store.len() != 1 {
		t.Fatalf("len = %d after sweep, want 1", store.len())
	}

	now = now.Add(2 * time.Minute)
	if _, _, result := store.move(s.id, "u1", actionNext, nil); result != moveExpired {
		t.Errorf("result = %v, want moveExpired", result)
	}
}

// TestPaginatorStore_ExpiresAtMaxAge は操作を続けても作成からmaxAgeで期限切れになることを検証する。
func TestPaginatorStore_ExpiresAtMaxAge(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var expired int
	store := newPaginatorStore(5*time.Minute, func(*paginatorSession) { expired++ })
	store.now = func() time.Time { return now }

	s := store.create("u1", threeRecords(), &discordgo.Interaction{})

	// 4分ごとに操作して12分まで延長する
	for i := 0; i < 3; i++ {
		now = now.Add(4 * time.Minute)
		if _, _, result := store.move(s.id, "u1", actionSelect, []string{"1"}); result != moveOK {
			t.Fatalf("move at %d: result = %v, want moveOK", i, result)
		}
	}

	now = now.Add(2 * time.Minute)
	if _, _, result := store.move(s.id, "u1", actionNext, nil); result != moveExpired {
		t.Errorf("result = %v, want moveExpired after maxAge", result)
	}

	store.sweep()
	if store.len() != 0 {
		t.Errorf("len = %d after sweep, want 0", store.len())
	}
	if expired != 1 {
		t.Errorf("onExpire called %d times, want 1", expired)
	}
	if maxPaginatorAge+paginatorSweepInterval >= 15*time.Minute {
		t.Errorf("maxPaginatorAge = %v leaves no room for the sweep interval before the 15 minute token lifetime", maxPaginatorAge)
	}
}

func TestPaginatorStore_SweepCallsOnExpire(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var mu sync.Mutex
	var expired []string
	store := newPaginatorStore(5*time.Minute, func(s *paginatorSession) {
		mu.Lock()
		expired = append(expired, s.id)
		mu.Unlock()
	})
	store.now = func() time.Time { return now }

	old := store.create("u1", threeRecords(), &discordgo.Interaction{})
	now = now.Add(3 * time.Minute)
	fresh := store.create("u2", threeRecords(), &discordgo.Interaction{})

	now = now.Add(3 * time.Minute)
	store.sweep()

	mu.Lock()
	defer mu.Unlock()
	if len(expired) != 1 || expired[0] != old.id {
		t.Errorf("expired = %v, want [%s]", expired, old.id)
	}
	if store.len() != 1 {
		t.Errorf("len = %d, want 1", store.len())
	}
	if _, _, result := store.move(fresh.id, "u2", actionNext, nil); result != moveOK {
		t.Errorf("fresh session result = %v, want moveOK", result)
	}
}

func TestPaginatorStore_StopIsIdempotent(t *testing.T) {
	store := newPaginatorStore(time.Minute, nil)
	done := make(chan struct{})
	go func() {
		store.run(time.Hour)
		close(done)
	}()

	store.stop()
	store.stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not return after stop")
	}
}
