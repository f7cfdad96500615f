package history

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dosecalc/dosecalc/internal/platform/storage"
)

func newTestBuffer(t *testing.T) *Buffer {
	t.Helper()
	return NewBuffer(context.Background(), storage.NewMemory(), "bsa-dose", DefaultCapacity, zerolog.Nop())
}

func entry(n int) Entry {
	return Entry{
		PatientName:   fmt.Sprintf("Patient %d", n),
		RawInputs:     map[string]string{"weight": fmt.Sprintf("%d", 60+n)},
		ComputedValue: fmt.Sprintf("%d mg", 100+n),
		DateLabel:     "28 Aug 2026",
	}
}

func TestPush_CapsAtCapacityMostRecentFirst(t *testing.T) {
	b := newTestBuffer(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		if err := b.Push(ctx, entry(i)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
		if b.Len() > DefaultCapacity {
			t.Fatalf("buffer length %d exceeds capacity", b.Len())
		}
	}

	got := b.Entries()
	if len(got) != 3 {
		t.Fatalf("length = %d, want 3", len(got))
	}
	// Four pushes retain only the three most recent, newest first.
	for i, want := range []string{"Patient 4", "Patient 3", "Patient 2"} {
		if got[i].PatientName != want {
			t.Errorf("entries[%d] = %q, want %q", i, got[i].PatientName, want)
		}
	}
}

func TestPush_PersistsAcrossReload(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()

	b := NewBuffer(ctx, store, "bsa-dose", DefaultCapacity, zerolog.Nop())
	b.Push(ctx, entry(1))
	b.Push(ctx, entry(2))

	reloaded := NewBuffer(ctx, store, "bsa-dose", DefaultCapacity, zerolog.Nop())
	got := reloaded.Entries()
	if len(got) != 2 || got[0].PatientName != "Patient 2" {
		t.Errorf("reloaded buffer = %+v", got)
	}
}

func TestLoad_ReturnsRawValuesWithoutMutation(t *testing.T) {
	b := newTestBuffer(t)
	ctx := context.Background()
	b.Push(ctx, entry(1))
	b.Push(ctx, entry(2))

	e, err := b.Load(1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if e.PatientName != "Patient 1" || e.RawInputs["weight"] != "61" {
		t.Errorf("loaded entry = %+v", e)
	}
	if b.Len() != 2 {
		t.Error("Load must not mutate the buffer")
	}

	if _, err := b.Load(5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("err = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := b.Load(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("err = %v, want ErrIndexOutOfRange", err)
	}
}

func TestClear_RequiresConfirmation(t *testing.T) {
	b := newTestBuffer(t)
	ctx := context.Background()
	b.Push(ctx, entry(1))

	if err := b.Clear(ctx, false); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("err = %v, want ErrConfirmationRequired", err)
	}
	if b.Len() != 1 {
		t.Error("unconfirmed clear must not discard entries")
	}
	if err := b.Clear(ctx, true); err != nil {
		t.Fatalf("confirmed clear: %v", err)
	}
	if b.Len() != 0 {
		t.Error("confirmed clear must empty the buffer")
	}
}

func TestBuffers_PartitionedByCalculator(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()
	a := NewBuffer(ctx, store, "bsa-dose", DefaultCapacity, zerolog.Nop())
	b := NewBuffer(ctx, store, "bmi", DefaultCapacity, zerolog.Nop())
	a.Push(ctx, entry(1))
	if b.Len() != 0 {
		t.Error("history leaked between calculators")
	}
}

func TestNewBuffer_TruncatesOversizedBlob(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()
	wide := NewBuffer(ctx, store, "bsa-dose", 5, zerolog.Nop())
	for i := 1; i <= 5; i++ {
		wide.Push(ctx, entry(i))
	}
	narrow := NewBuffer(ctx, store, "bsa-dose", 3, zerolog.Nop())
	if narrow.Len() != 3 {
		t.Errorf("reloaded with smaller capacity = %d entries, want 3", narrow.Len())
	}
}
