package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/ctxutil"
)

/*
Context is the execution handle passed to a Handler for one task attempt.
Args are the positional task arguments exactly as enqueued, one raw JSON
value each, so handlers decide how strictly to type them.
*/
type Context struct {
	Ctx      context.Context
	TaskID   string
	TaskType string
	Attempt  int
	Backend  string
	Args     []json.RawMessage
}

func NewContext(ctx context.Context, taskID, taskType string, attempt int, backend string, args []json.RawMessage) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = ctxutil.WithTaskData(ctx, &ctxutil.TaskData{
		TaskID:   taskID,
		TaskType: taskType,
		Attempt:  attempt,
		Backend:  backend,
	})
	return &Context{
		Ctx:      ctx,
		TaskID:   taskID,
		TaskType: taskType,
		Attempt:  attempt,
		Backend:  backend,
		Args:     args,
	}
}

// EncodeArgs renders positional task arguments as raw JSON values.
func EncodeArgs(args ...any) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(args))
	for i, a := range args {
		if raw, ok := a.(json.RawMessage); ok {
			out = append(out, raw)
			continue
		}
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode task arg %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// DecodeArgs parses a JSON array payload into positional arguments.
func DecodeArgs(payload []byte) ([]json.RawMessage, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return nil, nil
	}
	var out []json.RawMessage
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, Permanentf("decode task args: %w", err)
	}
	return out, nil
}

func (c *Context) arg(i int) (json.RawMessage, error) {
	if i < 0 || i >= len(c.Args) {
		return nil, Permanentf("task %s: missing argument %d (got %d)", c.TaskType, i, len(c.Args))
	}
	return c.Args[i], nil
}

// ArgString returns argument i, which must be a JSON string.
func (c *Context) ArgString(i int) (string, error) {
	raw, err := c.arg(i)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", Permanentf("task %s: argument %d must be a string, got %s", c.TaskType, i, strings.TrimSpace(string(raw)))
	}
	return s, nil
}

// ArgInt64 returns argument i, which must be a JSON integer.
func (c *Context) ArgInt64(i int) (int64, error) {
	raw, err := c.arg(i)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, Permanentf("task %s: argument %d must be an integer, got %s", c.TaskType, i, strings.TrimSpace(string(raw)))
	}
	return n, nil
}
