package indexing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	apperrors "github.com/veeky/veeky-backend/internal/pkg/errors"
	"github.com/veeky/veeky-backend/internal/platform/logger"
)

const TaskTypeProcessVideo = "video:process"

type processVideoPayload struct {
	VideoID uint `json:"video_id"`
}

func processVideoTaskID(videoID uint) string {
	return fmt.Sprintf("%s:%d", TaskTypeProcessVideo, videoID)
}

// TaskInfo is a queue entry as exposed to API callers.
type TaskInfo struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	State string `json:"state"`
}

// Queue submits and inspects video processing jobs. One task per video is in
// flight at a time; re-enqueueing an already queued video is a no-op.
type Queue struct {
	log       *logger.Logger
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewQueue(log *logger.Logger, redis asynq.RedisClientOpt) *Queue {
	return &Queue{
		log:       log.With("service", "IndexingQueue"),
		client:    asynq.NewClient(redis),
		inspector: asynq.NewInspector(redis),
	}
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// EnqueueVideo submits asynchronous processing for the video and returns
// immediately. The task id is derived from the video id so double submission
// cannot queue the same video twice.
func (q *Queue) EnqueueVideo(ctx context.Context, videoID uint) (string, error) {
	payload, err := json.Marshal(processVideoPayload{VideoID: videoID})
	if err != nil {
		return "", fmt.Errorf("encode task payload: %w", err)
	}
	task := asynq.NewTask(TaskTypeProcessVideo, payload)
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.TaskID(processVideoTaskID(videoID)),
		asynq.MaxRetry(0),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			q.log.Info("video already queued", "video_id", videoID)
			return processVideoTaskID(videoID), nil
		}
		return "", fmt.Errorf("enqueue video %d: %w", videoID, err)
	}
	q.log.Info("video queued for indexing", "video_id", videoID, "task_id", info.ID)
	return info.ID, nil
}

// CancelQueued removes a still-queued task. Tasks that have already started
// run to completion or failure and cannot be cancelled.
func (q *Queue) CancelQueued(taskID string) error {
	info, err := q.inspector.GetTaskInfo("default", taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("inspect task %s: %w", taskID, err)
	}
	switch info.State {
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateRetry:
		if err := q.inspector.DeleteTask("default", taskID); err != nil {
			return fmt.Errorf("delete task %s: %w", taskID, err)
		}
		q.log.Info("queued task cancelled", "task_id", taskID)
		return nil
	default:
		return fmt.Errorf("task %s is %s and can no longer be cancelled: %w",
			taskID, info.State, apperrors.ErrInvalidArgument)
	}
}

// ListTasks returns the pending and in-progress tasks on the default queue.
func (q *Queue) ListTasks() ([]TaskInfo, error) {
	var out []TaskInfo
	pending, err := q.inspector.ListPendingTasks("default")
	if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	for _, task := range pending {
		out = append(out, TaskInfo{ID: task.ID, Type: task.Type, State: task.State.String()})
	}
	active, err := q.inspector.ListActiveTasks("default")
	if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, fmt.Errorf("list active tasks: %w", err)
	}
	for _, task := range active {
		out = append(out, TaskInfo{ID: task.ID, Type: task.Type, State: task.State.String()})
	}
	return out, nil
}

// Worker consumes video processing tasks and runs the orchestrator.
type Worker struct {
	log          *logger.Logger
	orchestrator *Orchestrator
}

func NewWorker(log *logger.Logger, orchestrator *Orchestrator) *Worker {
	return &Worker{
		log:          log.With("service", "IndexingWorker"),
		orchestrator: orchestrator,
	}
}

// Register binds the worker's task handlers onto the mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeProcessVideo, w.HandleProcessVideo)
}

func (w *Worker) HandleProcessVideo(ctx context.Context, task *asynq.Task) error {
	var payload processVideoPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode task payload: %v: %w", err, asynq.SkipRetry)
	}
	w.log.Info("processing video task", "video_id", payload.VideoID)
	if err := w.orchestrator.Process(ctx, payload.VideoID); err != nil {
		// The orchestrator already marked the video FAILED; retrying the
		// task would re-run the full pipeline without operator intent.
		return fmt.Errorf("process video %d: %v: %w", payload.VideoID, err, asynq.SkipRetry)
	}
	return nil
}
