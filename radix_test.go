package servhub

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTree_InsertGetDelete(t *testing.T) {
	tree := NewTree[int]()

	keys := make([]string, 0, 128)
	for i := 0; i < 128; i++ {
		keys = append(keys, fmt.Sprintf("svc-%03d", rand.Intn(10000)))
	}

	seen := map[string]int{}
	for i, k := range keys {
		_, updated := tree.Insert(k, i)
		_, dup := seen[k]
		require.Equal(t, dup, updated, k)
		seen[k] = i
	}
	require.Equal(t, len(seen), tree.Len())

	for k, want := range seen {
		got, ok := tree.Get(k)
		require.True(t, ok, k)
		require.Equal(t, want, got)
	}

	_, ok := tree.Get("never-inserted")
	require.False(t, ok)

	for k := range seen {
		_, had := tree.Delete(k)
		require.True(t, had, k)
		_, had = tree.Delete(k)
		require.False(t, had, k)
	}
	require.Zero(t, tree.Len())
}

func TestTree_InsertReplacesValue(t *testing.T) {
	tree := NewTree[string]()
	tree.Insert("calc", "old")
	old, updated := tree.Insert("calc", "new")
	require.True(t, updated)
	require.Equal(t, "old", old)
	require.Equal(t, 1, tree.Len())

	v, ok := tree.Get("calc")
	require.True(t, ok)
	require.Equal(t, "new", v)
}

func TestTree_WalkPrefixOrdered(t *testing.T) {
	tree := NewTree[int]()
	keys := []string{"calc", "calc.add", "calc.sub", "calcium", "time", "timer"}
	for i, k := range keys {
		tree.Insert(k, i)
	}

	var got []string
	for k := range tree.WalkPrefix("calc") {
		got = append(got, k)
	}
	want := []string{"calc", "calc.add", "calc.sub", "calcium"}
	require.Equal(t, want, got)
	require.True(t, sort.StringsAreSorted(got), "iteration is lexicographic")

	got = got[:0]
	for k := range tree.WalkPrefix("") {
		got = append(got, k)
	}
	require.Equal(t, []string{"calc", "calc.add", "calc.sub", "calcium", "time", "timer"}, got)

	for k := range tree.WalkPrefix("zzz") {
		t.Fatalf("unexpected key %q for an unmatched prefix", k)
	}
}

func TestTree_WalkPrefixEarlyStop(t *testing.T) {
	tree := NewTree[int]()
	for i := 0; i < 20; i++ {
		tree.Insert(fmt.Sprintf("svc-%02d", i), i)
	}

	var count int
	for range tree.WalkPrefix("svc-") {
		count++
		if count == 5 {
			break
		}
	}
	require.Equal(t, 5, count)
}
