package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("GB_TEST_INT", "nope")
	if got := Int("GB_TEST_INT", 7); got != 7 {
		t.Fatalf("want=7 got=%d", got)
	}
	t.Setenv("GB_TEST_INT", " 12 ")
	if got := Int("GB_TEST_INT", 7); got != 12 {
		t.Fatalf("want=12 got=%d", got)
	}
}

func TestBool(t *testing.T) {
	cases := map[string]bool{"true": true, "YES": true, "1": true, "off": false, "0": false}
	for raw, want := range cases {
		t.Setenv("GB_TEST_BOOL", raw)
		if got := Bool("GB_TEST_BOOL", !want); got != want {
			t.Fatalf("%q: want=%v got=%v", raw, want, got)
		}
	}
	t.Setenv("GB_TEST_BOOL", "maybe")
	if got := Bool("GB_TEST_BOOL", true); !got {
		t.Fatalf("unparseable value should return default")
	}
}

func TestDurations(t *testing.T) {
	t.Setenv("GB_TEST_SECONDS", "-4")
	if got := Seconds("GB_TEST_SECONDS", time.Minute); got != 0 {
		t.Fatalf("negative seconds should clamp, got=%s", got)
	}
	t.Setenv("GB_TEST_MILLIS", "250")
	if got := Millis("GB_TEST_MILLIS", time.Second); got != 250*time.Millisecond {
		t.Fatalf("millis: got=%s", got)
	}
}

func TestFloatAndString(t *testing.T) {
	t.Setenv("GB_TEST_FLOAT", "0.25")
	if got := Float("GB_TEST_FLOAT", 1); got != 0.25 {
		t.Fatalf("float: got=%v", got)
	}
	if got := String("GB_TEST_UNSET_STRING", "def"); got != "def" {
		t.Fatalf("string default: got=%q", got)
	}
}
