package store_test

import (
	"sort"
	"testing"
	"time"

	"github.com/onestore/picokv/store"
)

func TestSetGet(t *testing.T) {
	t.Parallel()

	s := store.New()
	s.Set("foo", []byte("bar"), time.Time{}, false)

	v, ok := s.Get("foo")
	if !ok || string(v) != "bar" {
		t.Fatalf("Get(foo) = %q, %v, want bar, true", v, ok)
	}

	if _, ok := s.Get("missing"); ok {
		t.Fatalf("Get(missing) = ok, want absent")
	}
}

func TestSetReplacesPriorExpiry(t *testing.T) {
	t.Parallel()

	s := store.New()
	s.Set("foo", []byte("v1"), time.Now().Add(-time.Hour), true) // already expired
	s.Set("foo", []byte("v2"), time.Time{}, false)                // re-set with no expiry

	v, ok := s.Get("foo")
	if !ok || string(v) != "v2" {
		t.Fatalf("Get(foo) = %q, %v, want v2, true", v, ok)
	}
}

func TestExpiryMonotonicity(t *testing.T) {
	t.Parallel()

	s := store.New()
	deadline := time.Now().Add(50 * time.Millisecond)
	s.Set("foo", []byte("bar"), deadline, true)

	if v, ok := s.Get("foo"); !ok {
		t.Fatalf("Get before deadline = %q, %v, want present", v, ok)
	}

	time.Sleep(80 * time.Millisecond)

	if _, ok := s.Get("foo"); ok {
		t.Fatalf("Get after deadline = ok, want absent")
	}

	// Once expired, it must never come back without a fresh Set.
	if _, ok := s.Get("foo"); ok {
		t.Fatalf("Get after deadline (again) = ok, want absent")
	}
}

func TestKeysSubstringFilter(t *testing.T) {
	t.Parallel()

	s := store.New()
	s.Set("user:1", []byte("a"), time.Time{}, false)
	s.Set("user:2", []byte("b"), time.Time{}, false)
	s.Set("order:1", []byte("c"), time.Time{}, false)

	got := s.Keys("user:*")
	sort.Strings(got)
	want := []string{"user:1", "user:2"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Keys(user:*) = %v, want %v", got, want)
	}
}

func TestKeysExcludesExpired(t *testing.T) {
	t.Parallel()

	s := store.New()
	s.Set("a", []byte("1"), time.Now().Add(-time.Second), true)
	s.Set("b", []byte("2"), time.Time{}, false)

	got := s.Keys("")
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("Keys(\"\") = %v, want [b]", got)
	}
}

func TestSnapshotAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	s := store.New()
	s.Set("a", []byte("1"), time.Time{}, false)
	s.Set("b", []byte("2"), time.Time{}, false)

	snap := s.Snapshot()

	s2 := store.New()
	s2.Load(snap)

	for _, k := range []string{"a", "b"} {
		v1, _ := s.Get(k)
		v2, ok := s2.Get(k)
		if !ok || string(v1) != string(v2) {
			t.Fatalf("key %q: got %q, want %q", k, v2, v1)
		}
	}
}
