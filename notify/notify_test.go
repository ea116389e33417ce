package notify

import "testing"

func TestFlagNotifiesOnChange(t *testing.T) {
	var flag Flag
	var seen []bool
	flag.Subscribe(func(value bool) {
		seen = append(seen, value)
	})

	flag.Set(true)
	flag.Set(true) // no change, no callback
	flag.Set(false)

	if !flagEqual(seen, []bool{true, false}) {
		t.Fatalf("expected callbacks [true false], got %v", seen)
	}
	if flag.Value() {
		t.Fatalf("expected final value false")
	}
}

func TestNilFlagNoOps(t *testing.T) {
	var flag *Flag
	flag.Set(true)
	flag.Subscribe(func(bool) {})
	if flag.Value() {
		t.Fatalf("nil flag should read false")
	}
}

func flagEqual(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
