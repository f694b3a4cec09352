package edl

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"talok/internal/domain"
)

func sampleInspection() domain.Inspection {
	return domain.Inspection{
		ID:        uuid.MustParse("7b0f8f5e-4a36-4f7b-9a53-1f0b6b0c1e11"),
		LeaseID:   uuid.MustParse("0c5bd1a4-7b73-4d8e-9f0e-5b8a3a6a2f10"),
		Kind:      domain.InspectionEntry,
		Date:      time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		KeysCount: 3,
		Rooms: []domain.Room{{Name: "Cuisine", Items: []domain.InspectionItem{
			{Name: "Évier", Condition: domain.ConditionGood, Notes: `<b>léger</b> éclat<script>alert(1)</script>`},
		}}},
		Meters:    []domain.MeterReading{{Kind: domain.MeterElectricity, Value: 1234.5, Unit: "kWh"}},
		Furniture: NewFurnitureInventory(),
	}
}

func TestRender(t *testing.T) {
	in := sampleInspection()
	_ = SetPresent(in.Furniture, "vaisselle", false)
	html, err := Render(in)
	if err != nil {
		t.Fatal(err)
	}
	s := string(html)
	for _, want := range []string{
		"État des lieux d&#39;entrée",
		"01/09/2024",
		"<b>léger</b> éclat",
		"1234,5 kWh",
		"Équipement obligatoire absent : Vaisselle",
		"Non signé",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("preview missing %q", want)
		}
	}
	if strings.Contains(s, "<script>") {
		t.Fatalf("notes not sanitized")
	}
}

func TestHash_IgnoresTimestamps(t *testing.T) {
	a := sampleInspection()
	b := sampleInspection()
	b.UpdatedAt = time.Now()
	ha, _ := Hash(a)
	hb, _ := Hash(b)
	if ha != hb {
		t.Fatalf("timestamps changed the hash")
	}
	b.KeysCount = 4
	hb, _ = Hash(b)
	if ha == hb {
		t.Fatalf("content change should change the hash")
	}
}

func TestPreviewer_SkipsUnchanged(t *testing.T) {
	var mu sync.Mutex
	results := map[string]int{}
	p := NewPreviewer(time.Millisecond, WithObserver(func(r string) {
		mu.Lock()
		results[r]++
		mu.Unlock()
	}))
	in := sampleInspection()

	first, err := p.Preview(context.Background(), in)
	if err != nil || !first.Rendered {
		t.Fatalf("first preview should render: %+v %v", first, err)
	}
	second, err := p.Preview(context.Background(), in)
	if err != nil || second.Rendered || second.Hash != first.Hash {
		t.Fatalf("second preview should be reused: %+v %v", second, err)
	}
	in.GeneralNotes = "RAS"
	third, _ := p.Preview(context.Background(), in)
	if !third.Rendered || third.Hash == first.Hash {
		t.Fatalf("changed content should re-render")
	}
	if results["rendered"] != 2 || results["unchanged"] != 1 {
		t.Fatalf("observer results = %v", results)
	}
}

func TestPreviewer_RequestDebounces(t *testing.T) {
	rendered := make(chan struct{}, 8)
	p := NewPreviewer(30*time.Millisecond, WithObserver(func(r string) {
		if r == "rendered" {
			rendered <- struct{}{}
		}
	}))
	defer p.Stop()

	in := sampleInspection()
	for i := 1; i <= 3; i++ {
		in.KeysCount = i
		p.Request(in)
	}
	select {
	case <-rendered:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced render never ran")
	}
	time.Sleep(80 * time.Millisecond)
	if len(rendered) != 0 {
		t.Fatalf("expected a single render, got %d more", len(rendered))
	}
	got, ok := p.Cached(in.ID)
	want, _ := Hash(in)
	if !ok || got.Hash != want {
		t.Fatalf("latest request should win")
	}
}

func TestPreviewer_FiredTimerKeepsSuccessor(t *testing.T) {
	var renders int32
	p := NewPreviewer(time.Millisecond, WithObserver(func(string) { atomic.AddInt32(&renders, 1) }))
	defer p.Stop()
	in := sampleInspection()

	p.Request(in)
	p.mu.Lock()
	first := p.pending[in.ID]
	// let the first timer fire and wait on the lock, then replace it the
	// way a newer Request does
	time.Sleep(50 * time.Millisecond)
	first.Stop()
	next := time.NewTimer(time.Hour)
	defer next.Stop()
	p.pending[in.ID] = next
	p.mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	p.mu.Lock()
	got := p.pending[in.ID]
	p.mu.Unlock()
	if got != next {
		t.Fatalf("fired timer dropped the pending request that replaced it")
	}
	if n := atomic.LoadInt32(&renders); n != 0 {
		t.Fatalf("replaced request still rendered %d time(s)", n)
	}
}

func TestPreviewer_ForgetAndStopReleaseRenders(t *testing.T) {
	p := NewPreviewer(time.Hour)
	a := sampleInspection()
	b := sampleInspection()
	b.ID = uuid.New()
	for _, in := range []domain.Inspection{a, b} {
		if _, err := p.Preview(context.Background(), in); err != nil {
			t.Fatal(err)
		}
	}
	p.Request(a)

	p.Forget(a.ID)
	if _, ok := p.Cached(a.ID); ok {
		t.Fatalf("forgotten render still cached")
	}
	p.mu.Lock()
	_, pending := p.pending[a.ID]
	p.mu.Unlock()
	if pending {
		t.Fatalf("forgotten request still pending")
	}

	p.Stop()
	if _, ok := p.Cached(b.ID); ok {
		t.Fatalf("renders survive Stop")
	}
}

func TestPreviewer_MaxCachedEvictsOldest(t *testing.T) {
	p := NewPreviewer(time.Hour, WithMaxCached(2))
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		in := sampleInspection()
		in.ID = id
		if _, err := p.Preview(context.Background(), in); err != nil {
			t.Fatal(err)
		}
	}
	if _, ok := p.Cached(ids[0]); ok {
		t.Fatalf("oldest render should be evicted")
	}
	for _, id := range ids[1:] {
		if _, ok := p.Cached(id); !ok {
			t.Fatalf("render %s evicted too early", id)
		}
	}
}
