package fault

import (
	"errors"
	"testing"
)

func TestKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
	}{
		{Configf("bad %s", "config"), Config},
		{Evalf("bad eval"), Eval},
		{Statef("bad state"), State},
	}
	for _, tc := range cases {
		if !Is(tc.err, tc.kind) {
			t.Errorf("Is(%v, %v) = false", tc.err, tc.kind)
		}
		for _, other := range []Kind{Config, Eval, State} {
			if other != tc.kind && Is(tc.err, other) {
				t.Errorf("Is(%v, %v) = true, want false", tc.err, other)
			}
		}
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(Config, cause, "loading %s", "defs")
	if !Is(err, Config) {
		t.Fatal("wrapped error lost its kind")
	}
	if !errors.Is(err, cause) {
		t.Fatal("wrapped error lost its cause")
	}
}

func TestIsNil(t *testing.T) {
	if Is(nil, Config) {
		t.Fatal("Is(nil) = true")
	}
}
