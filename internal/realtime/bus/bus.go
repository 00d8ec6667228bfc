// Package bus bridges the in-process event dispatcher to a Redis channel so
// events published by other processes reach local receivers and local events
// reach other processes.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domainevents "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/events"
)

var ErrUnknownEvent = errors.New("bus: unknown event")

type Bus interface {
	Publish(ctx context.Context, ev domainevents.Event) error
	StartForwarder(ctx context.Context, onEvent func(ctx context.Context, ev domainevents.Event)) error
	Close() error
}

// Envelope is the wire form of one event on the channel.
type Envelope struct {
	ID      string          `json:"id"`
	Origin  string          `json:"origin"`
	Name    string          `json:"name"`
	SentAt  time.Time       `json:"sent_at"`
	Payload json.RawMessage `json:"payload"`
}

func Encode(origin string, ev domainevents.Event) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("bus: nil event")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("bus: encode %s: %w", ev.EventName(), err)
	}
	return json.Marshal(Envelope{
		ID:      uuid.NewString(),
		Origin:  origin,
		Name:    ev.EventName(),
		SentAt:  time.Now().UTC(),
		Payload: payload,
	})
}

// Decode parses an envelope and its typed event.
func Decode(raw []byte) (Envelope, domainevents.Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, nil, fmt.Errorf("bus: decode envelope: %w", err)
	}
	var (
		ev  domainevents.Event
		err error
	)
	switch strings.TrimSpace(env.Name) {
	case domainevents.NameGradePublished:
		var v domainevents.GradePublished
		err = json.Unmarshal(env.Payload, &v)
		ev = v
	case domainevents.NameScoreChanged:
		var v domainevents.ScoreChanged
		err = json.Unmarshal(env.Payload, &v)
		ev = v
	case domainevents.NameCourseDeleted:
		var v domainevents.CourseDeleted
		err = json.Unmarshal(env.Payload, &v)
		ev = v
	case domainevents.NameLeaderboardEntered:
		var v domainevents.LeaderboardEntered
		err = json.Unmarshal(env.Payload, &v)
		ev = v
	default:
		return env, nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Name)
	}
	if err != nil {
		return env, nil, fmt.Errorf("bus: decode %s payload: %w", env.Name, err)
	}
	return env, ev, nil
}
