package fingerprint

import (
	"math/rand"
	"testing"
)

func TestOrderIndependence(t *testing.T) {
	tasks := []string{"meditate", "write", "run", "call mom", "write"}
	want := Of(tasks)

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		perm := make([]string, len(tasks))
		copy(perm, tasks)
		r.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
		if got := Of(perm); got != want {
			t.Fatalf("permutation %v produced %q, want %q", perm, got, want)
		}
	}
}

func TestSensitivity(t *testing.T) {
	pairs := [][2][]string{
		{{"a"}, {"b"}},
		{{"a"}, {"a", "a"}},
		{{"a", "b"}, {"a"}},
		{{"a,b"}, {"a", "b"}},
		{{`a","b`}, {"a", "b"}},
		{{"ab"}, {"a", "b"}},
		{{""}, {}},
		{{"write "}, {"write"}},
		{{"\xff"}, {"\xfe"}},
		{{"\xff"}, {"\uFFFD"}},
		{{"caf\xe9"}, {"café"}},
		{{`\xff`}, {"\xff"}},
	}
	for _, p := range pairs {
		if Of(p[0]) == Of(p[1]) {
			t.Errorf("expected %q and %q to differ", p[0], p[1])
		}
	}
}

func TestValidTextKeepsJSONForm(t *testing.T) {
	got := Of([]string{"write", `say "hi"`, "café"})
	want := Value(`["café","say \"hi\"","write"]`)
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestInvalidUTF8IsStable(t *testing.T) {
	a := Of([]string{"ok", "\xffbad"})
	b := Of([]string{"\xffbad", "ok"})
	if a != b {
		t.Fatalf("order changed the fingerprint: %s vs %s", a, b)
	}
}

func TestEmptySentinel(t *testing.T) {
	if Of(nil) != Empty || Of([]string{}) != Empty {
		t.Fatal("empty snapshots must map to Empty")
	}
	if Of([]string{""}) == Empty {
		t.Fatal("a snapshot with one blank task is not empty")
	}
}

func TestOfDoesNotMutateInput(t *testing.T) {
	tasks := []string{"write", "meditate"}
	Of(tasks)
	if tasks[0] != "write" || tasks[1] != "meditate" {
		t.Fatalf("input reordered: %v", tasks)
	}
}

func TestShort(t *testing.T) {
	a := Of([]string{"meditate"}).Short()
	if len(a) != 12 {
		t.Fatalf("expected 12 chars, got %d", len(a))
	}
	if a == Of([]string{"write"}).Short() {
		t.Fatal("short hashes of different snapshots collided")
	}
}
