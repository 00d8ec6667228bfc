package jsonenc

import (
	"encoding/json"
	"testing"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/coursekey"
)

func TestOrderedMapPreservesInsertionOrder(t *testing.T) {
	m := NewOrderedMap().
		Set("category", "Homework").
		Set("percent", 0.25).
		Set("detail", "Homework = 25.00% of a possible 15.00%").
		Set("label", "HW Avg")
	m.Set("percent", 0.5)

	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"category":"Homework","percent":0.5,"detail":"Homework = 25.00% of a possible 15.00%","label":"HW Avg"}`
	if string(raw) != want {
		t.Fatalf("want=%s\n got=%s", want, raw)
	}
}

func TestOrderedMapRoundTripNested(t *testing.T) {
	in := `{"z":1,"a":{"y":[1,{"q":true,"b":null}],"c":"s"},"m":[]}`
	var m OrderedMap
	if err := json.Unmarshal([]byte(in), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if keys := m.Keys(); len(keys) != 3 || keys[0] != "z" || keys[1] != "a" || keys[2] != "m" {
		t.Fatalf("keys: %v", keys)
	}
	out, err := json.Marshal(&m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != in {
		t.Fatalf("round trip:\nwant=%s\n got=%s", in, out)
	}
}

func TestEncodeRawPassesThroughOrder(t *testing.T) {
	raw := json.RawMessage(`{ "b": 1,
	  "a": [2, 3] }`)
	got, err := Encode(raw)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(got) != `{"b":1,"a":[2,3]}` {
		t.Fatalf("got=%s", got)
	}
	if _, err := Encode(json.RawMessage(`{"b":`)); err == nil {
		t.Fatalf("expected error for invalid raw json")
	}
}

func TestEncodeCourseKeysAndMarkup(t *testing.T) {
	key := coursekey.MustParse("course-v1:edX+DemoX+Demo_2014")
	got, err := Encode(NewOrderedMap().Set("course_id", key).Set("display_name", "<b>Week 1</b>"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"course_id":"course-v1:edX+DemoX+Demo_2014","display_name":"<b>Week 1</b>"}`
	if string(got) != want {
		t.Fatalf("want=%s\n got=%s", want, got)
	}
}
