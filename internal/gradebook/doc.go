// Package gradebook keeps the per-learner course grade summary in step with
// grading events: receivers queue the update task, the task asks the grading
// engine for fresh numbers and writes them through the gradebook aggregate,
// and the leaderboard hooks watch each write.
package gradebook
