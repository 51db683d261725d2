package watch

import "github.com/zoobzio/capitan"

// 任务生命周期信号
var (
	TaskStarted = capitan.NewSignal(
		"consulwatch.task.started",
		"Watch task started",
	)

	TaskStopped = capitan.NewSignal(
		"consulwatch.task.stopped",
		"Watch task stopped",
	)

	TaskStateChanged = capitan.NewSignal(
		"consulwatch.task.state.changed",
		"Watch task state transition",
	)

	PollFailed = capitan.NewSignal(
		"consulwatch.poll.failed",
		"Blocking query failed",
	)
)

// 信号字段
var (
	KeyTask     = capitan.NewStringKey("task")
	KeyOldState = capitan.NewStringKey("old_state")
	KeyNewState = capitan.NewStringKey("new_state")
	KeyError    = capitan.NewStringKey("error")
	KeyDelay    = capitan.NewDurationKey("delay")
	KeyFailures = capitan.NewIntKey("failures")
)
