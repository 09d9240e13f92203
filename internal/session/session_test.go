package session

import (
	"fmt"
	"sync"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGetOrCreate(t *testing.T) {
	store := NewStore()

	s1, err := store.GetOrCreate("cli")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	s2, err := store.GetOrCreate("cli")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if s1 != s2 {
		t.Error("same id returned different sessions")
	}
	if s1.ID() != "cli" {
		t.Errorf("ID() = %q", s1.ID())
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}

	if _, err := store.GetOrCreate(""); err == nil {
		t.Error("empty id expected error")
	}
}

func TestAppendExchange(t *testing.T) {
	store := NewStore()
	s, _ := store.GetOrCreate("cli")

	s.Lock()
	s.AppendExchangeLocked("what is a topic?", "A topic is a named bus.")
	s.AppendExchangeLocked("and a service?", "A service is request/response.")
	s.Unlock()

	turns := s.History()
	if len(turns) != 4 {
		t.Fatalf("got %d turns, want 4", len(turns))
	}
	wantRoles := []string{RoleUser, RoleAssistant, RoleUser, RoleAssistant}
	for i, want := range wantRoles {
		if turns[i].Role != want {
			t.Errorf("turn %d role = %q, want %q", i, turns[i].Role, want)
		}
	}
	if turns[2].Content != "and a service?" {
		t.Errorf("turn 2 content = %q", turns[2].Content)
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	store := NewStore()
	s, _ := store.GetOrCreate("cli")

	s.Lock()
	s.AppendExchangeLocked("q", "a")
	s.Unlock()

	turns := s.History()
	turns[0].Content = "mutated"

	if got := s.History()[0].Content; got != "q" {
		t.Errorf("transcript was mutated through the returned slice: %q", got)
	}
}

func TestUsageAccumulates(t *testing.T) {
	store := NewStore()
	s, _ := store.GetOrCreate("cli")

	s.Lock()
	s.AddUsageLocked(Usage{Requests: 1, InputTokens: 100, OutputTokens: 40})
	s.AddUsageLocked(Usage{Requests: 2, InputTokens: 50, OutputTokens: 10})
	s.Unlock()

	got := s.Usage()
	want := Usage{Requests: 3, InputTokens: 150, OutputTokens: 50}
	if got != want {
		t.Errorf("Usage() = %+v, want %+v", got, want)
	}
}

func TestConcurrentExchanges(t *testing.T) {
	store := NewStore()

	const goroutines = 16
	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", i%4)
			s, err := store.GetOrCreate(id)
			if err != nil {
				t.Error(err)
				return
			}
			s.Lock()
			s.AppendExchangeLocked("q", "a")
			s.AddUsageLocked(Usage{Requests: 1, InputTokens: 10, OutputTokens: 5})
			s.Unlock()
		}()
	}
	wg.Wait()

	if store.Len() != 4 {
		t.Errorf("Len() = %d, want 4", store.Len())
	}
	var totalTurns, totalRequests int
	for i := range 4 {
		s, _ := store.GetOrCreate(fmt.Sprintf("session-%d", i))
		totalTurns += len(s.History())
		totalRequests += s.Usage().Requests
	}
	if totalTurns != goroutines*2 {
		t.Errorf("total turns = %d, want %d", totalTurns, goroutines*2)
	}
	if totalRequests != goroutines {
		t.Errorf("total requests = %d, want %d", totalRequests, goroutines)
	}
}
