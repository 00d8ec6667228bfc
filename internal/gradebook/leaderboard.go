package gradebook

import (
	"context"
	"fmt"
	"slices"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/coursekey"
	gbrepo "github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/gradebook"
	userrepo "github.com/kotky/gradebook-edx-platform-extensions/internal/data/repos/user"
	domainagg "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/aggregates"
	domainevents "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/events"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/domain/gradebook"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/events"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/observability"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/dbctx"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/platform/logger"
)

// Notifier is told when a learner enters a course leaderboard.
type Notifier interface {
	LeaderboardEntered(ctx context.Context, ev domainevents.LeaderboardEntered)
}

type eventNotifier struct {
	d       *events.Dispatcher
	log     *logger.Logger
	metrics *observability.Metrics
}

// NewEventNotifier publishes LeaderboardEntered on the dispatcher, where the
// bus bridge can relay it to other processes.
func NewEventNotifier(d *events.Dispatcher, baseLog *logger.Logger, metrics *observability.Metrics) Notifier {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &eventNotifier{d: d, log: baseLog.With("component", "LeaderboardNotifier"), metrics: metrics}
}

func (n *eventNotifier) LeaderboardEntered(ctx context.Context, ev domainevents.LeaderboardEntered) {
	n.metrics.IncLeaderboardEntered()
	if err := n.d.Publish(ctx, ev); err != nil {
		n.log.Warn("Leaderboard notification failed", "course_id", ev.CourseKey.String(), "user_id", ev.UserID, "error", err)
	}
}

// LeaderboardHooks rank the learner around each gradebook write and notify
// when the write moves them into the top LeaderboardSize. Hook failures are
// logged and swallowed; the write always proceeds.
type LeaderboardHooks struct {
	cfg      Config
	log      *logger.Logger
	entries  gbrepo.EntryRepo
	users    userrepo.UserRepo
	notifier Notifier
}

var _ domainagg.EntrySaveHooks = (*LeaderboardHooks)(nil)

func NewLeaderboardHooks(cfg Config, baseLog *logger.Logger, entries gbrepo.EntryRepo, users userrepo.UserRepo, notifier Notifier) *LeaderboardHooks {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &LeaderboardHooks{
		cfg:      cfg,
		log:      baseLog.With("component", "LeaderboardHooks"),
		entries:  entries,
		users:    users,
		notifier: notifier,
	}
}

func (h *LeaderboardHooks) BeforeEntrySave(ctx context.Context, entry *gradebook.Entry) {
	if !h.cfg.NotificationsEnabled || entry == nil {
		return
	}
	defer h.recoverHook("before_save", entry)
	rank, err := h.rank(ctx, entry)
	if err != nil {
		h.log.Warn("Pre-save leaderboard rank failed", "course_id", entry.CourseID, "user_id", entry.UserID, "error", err)
		return
	}
	entry.PresaveLeaderboardRank = &rank
}

func (h *LeaderboardHooks) AfterEntrySave(ctx context.Context, entry *gradebook.Entry, created bool) {
	if !h.cfg.NotificationsEnabled || entry == nil || entry.Grade == 0 {
		return
	}
	defer h.recoverHook("after_save", entry)
	rank, err := h.rank(ctx, entry)
	if err != nil {
		h.log.Warn("Post-save leaderboard rank failed", "course_id", entry.CourseID, "user_id", entry.UserID, "error", err)
		return
	}
	prev := 0
	if entry.PresaveLeaderboardRank != nil {
		prev = *entry.PresaveLeaderboardRank
	}
	if !EnteredLeaderboard(prev, rank, h.cfg.LeaderboardSize) {
		return
	}
	key, err := coursekey.Parse(entry.CourseID)
	if err != nil {
		h.log.Warn("Leaderboard entry has unparsable course id", "course_id", entry.CourseID, "error", err)
		return
	}
	h.log.Info("Learner entered leaderboard", "course_id", entry.CourseID, "user_id", entry.UserID, "rank", rank, "previous_rank", prev, "created", created)
	if h.notifier != nil {
		h.notifier.LeaderboardEntered(ctx, domainevents.LeaderboardEntered{
			UserID:       entry.UserID,
			CourseKey:    key,
			Rank:         rank,
			PreviousRank: prev,
			Grade:        entry.Grade,
		})
	}
}

// EnteredLeaderboard reports whether a move from prev to next crosses into
// the top size positions. A prev of zero means unranked.
func EnteredLeaderboard(prev, next, size int) bool {
	if size <= 0 || next <= 0 || next > size {
		return false
	}
	return prev <= 0 || prev > size
}

// rank is 0 for a zero grade or an excluded learner, otherwise the learner's
// 1-based position among ranked peers.
func (h *LeaderboardHooks) rank(ctx context.Context, entry *gradebook.Entry) (int, error) {
	if entry.Grade == 0 {
		return 0, nil
	}
	excluded, err := h.users.AggregateExclusionUserIDs(ctx, nil, entry.CourseID)
	if err != nil {
		return 0, fmt.Errorf("exclusion ids: %w", err)
	}
	if slices.Contains(excluded, entry.UserID) {
		return 0, nil
	}
	return h.entries.UserPosition(dbctx.Background(ctx), entry.CourseID, entry.UserID, excluded)
}

func (h *LeaderboardHooks) recoverHook(stage string, entry *gradebook.Entry) {
	if r := recover(); r != nil {
		h.log.Error("Leaderboard hook panic", "stage", stage, "course_id", entry.CourseID, "user_id", entry.UserID, "panic", r)
	}
}
