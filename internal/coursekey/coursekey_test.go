package coursekey

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseCourseKeyForms(t *testing.T) {
	cases := []struct {
		raw        string
		org        string
		deprecated bool
	}{
		{raw: "course-v1:edX+DemoX+Demo_2014", org: "edX", deprecated: false},
		{raw: "edX/toy/2012_Fall", org: "edX", deprecated: true},
		{raw: "  course-v1:MITx+6.002x+2013_T1 ", org: "MITx"},
	}
	for _, tc := range cases {
		k, err := Parse(tc.raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.raw, err)
		}
		if k.Org != tc.org || k.Deprecated != tc.deprecated {
			t.Fatalf("Parse(%q): got %+v", tc.raw, k)
		}
	}
}

func TestParseRejectsMalformedKeys(t *testing.T) {
	for _, raw := range []string{"", "course-v1:edX+DemoX", "edX/DemoX", "not a key", "course-v1:edX+Demo X+2014", "a/b/c/d"} {
		if _, err := Parse(raw); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("Parse(%q): expected ErrInvalidKey, got=%v", raw, err)
		}
	}
}

func TestCourseKeyStringRoundTrip(t *testing.T) {
	for _, raw := range []string{"course-v1:edX+DemoX+Demo_2014", "edX/toy/2012_Fall"} {
		if got := MustParse(raw).String(); got != raw {
			t.Fatalf("round trip: want=%s got=%s", raw, got)
		}
	}
}

func TestUsageKeys(t *testing.T) {
	course := MustParse("course-v1:edX+DemoX+Demo_2014")
	u := course.MakeUsageKey("problem", "p1")
	want := "block-v1:edX+DemoX+Demo_2014+type@problem+block@p1"
	if u.String() != want {
		t.Fatalf("usage key: want=%s got=%s", want, u.String())
	}
	parsed, err := ParseUsageKey(want)
	if err != nil {
		t.Fatalf("ParseUsageKey: %v", err)
	}
	if parsed != u {
		t.Fatalf("parsed mismatch: %+v vs %+v", parsed, u)
	}

	legacy, err := ParseUsageKey("i4x://edX/toy/html/intro")
	if err != nil {
		t.Fatalf("legacy: %v", err)
	}
	if legacy.BlockType != "html" || legacy.String() != "i4x://edX/toy/html/intro" {
		t.Fatalf("legacy: %+v", legacy)
	}
	if !u.Course.Valid() {
		t.Fatalf("block-v1 course should be valid: %+v", u.Course)
	}
	if _, err := ParseUsageKey("block-v1:edX+DemoX+Demo_2014+problem+p1"); err == nil {
		t.Fatalf("expected error for usage key missing type@/block@")
	}
}

func TestKeysEncodeAsJSONStrings(t *testing.T) {
	course := MustParse("course-v1:edX+DemoX+Demo_2014")
	raw, err := json.Marshal(map[string]any{"course": course, "loc": course.MakeUsageKey("chapter", "c1")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"course":"course-v1:edX+DemoX+Demo_2014","loc":"block-v1:edX+DemoX+Demo_2014+type@chapter+block@c1"}`
	if string(raw) != want {
		t.Fatalf("json: want=%s got=%s", want, raw)
	}
	var back struct {
		Course CourseKey `json:"course"`
	}
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Course != course {
		t.Fatalf("unmarshal mismatch: %+v", back.Course)
	}
}

func TestI4XCourseHasNoRun(t *testing.T) {
	u, err := ParseUsageKey("i4x://edX/DemoX/problem/p1")
	if err != nil {
		t.Fatalf("ParseUsageKey: %v", err)
	}
	if u.Course.IsZero() {
		t.Fatalf("org and course should be kept: %+v", u.Course)
	}
	if u.Course.Valid() {
		t.Fatalf("run-less course reported valid: %+v", u.Course)
	}
	if _, err := Parse(u.Course.String()); err == nil {
		t.Fatalf("run-less course %q should not reparse", u.Course.String())
	}
	if (CourseKey{}).Valid() {
		t.Fatalf("zero key reported valid")
	}
}
