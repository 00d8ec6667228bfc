package ctxutil

import "context"

type taskDataKey struct{}

// TaskData identifies the queued task a context is executing on behalf of.
type TaskData struct {
	TaskID   string
	TaskType string
	Attempt  int
	Backend  string
}

func WithTaskData(ctx context.Context, td *TaskData) context.Context {
	return context.WithValue(ctx, taskDataKey{}, td)
}

func GetTaskData(ctx context.Context) *TaskData {
	if td, ok := ctx.Value(taskDataKey{}).(*TaskData); ok {
		return td
	}
	return nil
}

// LogFields flattens trace and task identifiers into logger key/values.
func LogFields(ctx context.Context) []interface{} {
	var out []interface{}
	if td := GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			out = append(out, "trace_id", td.TraceID)
		}
		if td.RequestID != "" {
			out = append(out, "request_id", td.RequestID)
		}
	}
	if td := GetTaskData(ctx); td != nil {
		out = append(out, "task_id", td.TaskID, "task_type", td.TaskType, "attempt", td.Attempt)
	}
	return out
}
