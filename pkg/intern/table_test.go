package intern_test

import (
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/mailsummary/pkg/intern"
)

func TestTable_Intern_Assigns_Sequential_Indices(t *testing.T) {
	t.Parallel()

	tbl := intern.NewTable[string](0)

	for i, s := range []string{"alice", "bob", "carol"} {
		if got := tbl.Intern(s); got != int32(i) {
			t.Fatalf("Intern(%q)=%d, want %d", s, got, i)
		}
	}

	if got := tbl.Intern("bob"); got != 1 {
		t.Fatalf("Intern(bob) again=%d, want 1", got)
	}

	if got := tbl.Len(); got != 3 {
		t.Fatalf("Len=%d, want 3", got)
	}

	if diff := cmp.Diff([]string{"alice", "bob", "carol"}, tbl.Values()); diff != "" {
		t.Fatalf("Values mismatch (-want +got):\n%s", diff)
	}
}

func TestTable_Intern_Empty_Returns_NoEntry(t *testing.T) {
	t.Parallel()

	tbl := intern.NewTable[string](4)

	if got := tbl.Intern(""); got != intern.NoEntry {
		t.Fatalf("Intern(\"\")=%d, want NoEntry", got)
	}

	if got := tbl.Len(); got != 0 {
		t.Fatalf("Len=%d after interning empty value, want 0", got)
	}
}

func TestTable_Get_Out_Of_Range(t *testing.T) {
	t.Parallel()

	tbl := intern.NewTable[string](0)
	tbl.Intern("x")

	for _, i := range []int32{intern.NoEntry, 1, 100} {
		if v, ok := tbl.Get(i); ok {
			t.Fatalf("Get(%d)=(%q,true), want false", i, v)
		}
	}

	if v, ok := tbl.Get(0); !ok || v != "x" {
		t.Fatalf("Get(0)=(%q,%v), want (x,true)", v, ok)
	}
}

func TestTable_MustGet_Panics_Out_Of_Range(t *testing.T) {
	t.Parallel()

	tbl := intern.NewTable[string](0)

	defer func() {
		if recover() == nil {
			t.Fatal("MustGet(3) did not panic")
		}
	}()

	tbl.MustGet(3)
}

func TestTable_Indices_Stable_Across_Growth(t *testing.T) {
	t.Parallel()

	tbl := intern.NewTable[string](0)

	for i := range 1000 {
		tbl.Intern("v" + strconv.Itoa(i))
	}

	for i := range 1000 {
		want := "v" + strconv.Itoa(i)
		if got := tbl.MustGet(int32(i)); got != want {
			t.Fatalf("MustGet(%d)=%q, want %q", i, got, want)
		}

		if idx, ok := tbl.Lookup(want); !ok || idx != int32(i) {
			t.Fatalf("Lookup(%q)=(%d,%v), want (%d,true)", want, idx, ok, i)
		}
	}
}

func TestTable_Concurrent_Intern_Never_Duplicates(t *testing.T) {
	t.Parallel()

	tbl := intern.NewTable[string](0)

	const (
		workers = 8
		values  = 500
	)

	results := make([][]int32, workers)

	var wg sync.WaitGroup

	for w := range workers {
		wg.Go(func() {
			got := make([]int32, values)
			for i := range values {
				got[i] = tbl.Intern("k" + strconv.Itoa(i))
			}

			results[w] = got
		})
	}

	wg.Wait()

	if got := tbl.Len(); got != values {
		t.Fatalf("Len=%d, want %d", got, values)
	}

	for w := 1; w < workers; w++ {
		if diff := cmp.Diff(results[0], results[w]); diff != "" {
			t.Fatalf("worker %d saw different indices (-w0 +w%d):\n%s", w, w, diff)
		}
	}
}
