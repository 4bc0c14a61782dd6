package journal_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/voicenav/internal/journal"
)

func newFileStore(t *testing.T) (*journal.FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	fs, err := journal.NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { _ = fs.Close() })
	return fs, path
}

func TestFileStore_WriteAndRecent(t *testing.T) {
	t.Parallel()

	fs, _ := newFileStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, text := range []string{"go back", "basic much", "algebra"} {
		err := fs.Write(ctx, journal.Entry{
			Time:      base.Add(time.Duration(i) * time.Second),
			Utterance: text,
			Resolved:  true,
		})
		if err != nil {
			t.Fatalf("Write(%q): %v", text, err)
		}
	}

	got, err := fs.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d entries, want 2", len(got))
	}
	if got[0].Utterance != "algebra" || got[1].Utterance != "basic much" {
		t.Errorf("Recent order = [%q %q], want newest first", got[0].Utterance, got[1].Utterance)
	}
	if !got[0].Time.Equal(base.Add(2 * time.Second)) {
		t.Errorf("Time = %v, want %v", got[0].Time, base.Add(2*time.Second))
	}
}

func TestFileStore_DefaultsTime(t *testing.T) {
	t.Parallel()

	fs, _ := newFileStore(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	if err := fs.Write(ctx, journal.Entry{Utterance: "help"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := fs.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Time.Before(before) {
		t.Errorf("Recent = %+v, want one entry stamped now", got)
	}
}

func TestFileStore_Misses(t *testing.T) {
	t.Parallel()

	fs, _ := newFileStore(t)
	ctx := context.Background()

	writes := []journal.Entry{
		{Utterance: "Nex Quest", Corrected: "nex quest"},
		{Utterance: "nex quest!", Corrected: "nex quest"},
		{Utterance: "blorp"},
		{Utterance: "go back", Resolved: true},
		{Utterance: "zzz", Corrected: "zzz"},
	}
	for _, e := range writes {
		if err := fs.Write(ctx, e); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	got, err := fs.Misses(ctx, 10)
	if err != nil {
		t.Fatalf("Misses: %v", err)
	}
	want := []journal.Miss{
		{Text: "nex quest", Count: 2},
		{Text: "blorp", Count: 1},
		{Text: "zzz", Count: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("Misses = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Misses[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFileStore_SkipsMalformedLines(t *testing.T) {
	t.Parallel()

	fs, path := newFileStore(t)
	ctx := context.Background()

	if err := fs.Write(ctx, journal.Entry{Utterance: "first"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("{not json\n"); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	_ = f.Close()
	if err := fs.Write(ctx, journal.Entry{Utterance: "second"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := fs.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Recent returned %d entries, want 2", len(got))
	}
}

func TestFileStore_Close(t *testing.T) {
	t.Parallel()

	fs, _ := newFileStore(t)
	ctx := context.Background()

	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := fs.Write(ctx, journal.Entry{Utterance: "late"}); !errors.Is(err, journal.ErrClosed) {
		t.Errorf("Write after Close: err = %v, want ErrClosed", err)
	}
	if _, err := fs.Recent(ctx, 1); !errors.Is(err, journal.ErrClosed) {
		t.Errorf("Recent after Close: err = %v, want ErrClosed", err)
	}
	if err := fs.Close(); !errors.Is(err, journal.ErrClosed) {
		t.Errorf("second Close: err = %v, want ErrClosed", err)
	}
}

func TestFileStore_ConcurrentWrites(t *testing.T) {
	t.Parallel()

	fs, _ := newFileStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 25 {
				if err := fs.Write(ctx, journal.Entry{Utterance: "next question", Resolved: true}); err != nil {
					t.Errorf("Write: %v", err)
					return
				}
			}
		})
	}
	wg.Wait()

	got, err := fs.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 200 {
		t.Errorf("Recent returned %d entries, want 200", len(got))
	}
}
