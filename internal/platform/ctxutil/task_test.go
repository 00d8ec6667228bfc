package ctxutil

import (
	"context"
	"testing"
)

func TestLogFieldsEmptyContext(t *testing.T) {
	if got := LogFields(context.Background()); len(got) != 0 {
		t.Fatalf("expected no fields, got=%v", got)
	}
}

func TestLogFieldsCombinesTraceAndTask(t *testing.T) {
	ctx := WithTraceData(context.Background(), &TraceData{TraceID: "t1"})
	ctx = WithTaskData(ctx, &TaskData{TaskID: "j1", TaskType: "x", Attempt: 2})
	got := LogFields(ctx)
	want := []interface{}{"trace_id", "t1", "task_id", "j1", "task_type", "x", "attempt", 2}
	if len(got) != len(want) {
		t.Fatalf("len: want=%d got=%d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("field %d: want=%v got=%v", i, want[i], got[i])
		}
	}
}
