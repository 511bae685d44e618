package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/model"
)

var (
	ErrQueueFull         = errors.New("生成队列已满")
	ErrDispatcherStopped = errors.New("生成调度器已停止")
)

// Job 一次排程生成请求
// UserID 为空时为组织级别的整周生成
type Job struct {
	ID             string
	Kind           string // preview | weekly
	OrganizationID string
	UserID         string
	WeekStart      time.Time
}

// JobRecorder 记录生成任务的执行状态
type JobRecorder interface {
	Create(ctx context.Context, job *model.GenerationJob) error
	MarkRunning(ctx context.Context, jobID string, at time.Time) error
	MarkFinished(ctx context.Context, jobID, status, errMsg string, at time.Time) error
}

// Options 调度器参数
type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // 单个任务超时
}

// Dispatcher 异步生成任务调度器
// 任务失败只记录与打日志，不回传给提交方
type Dispatcher struct {
	m        Materializer
	recorder JobRecorder
	logger   *zap.Logger
	opts     Options

	queue chan Job
	wg    sync.WaitGroup
	mu    sync.RWMutex
	done  bool

	onSuccess func(ctx context.Context, job Job)
	now       func() time.Time
}

// NewDispatcher 创建调度器，需调用 Start 启动 worker
func NewDispatcher(m Materializer, recorder JobRecorder, opts Options, logger *zap.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	return &Dispatcher{
		m:        m,
		recorder: recorder,
		logger:   logger,
		opts:     opts,
		queue:    make(chan Job, opts.QueueSize),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OnSuccess 注册任务成功后的回调（如缓存失效）
func (d *Dispatcher) OnSuccess(fn func(ctx context.Context, job Job)) {
	d.onSuccess = fn
}

// Start 启动 worker
func (d *Dispatcher) Start() {
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("排程生成调度器已启动",
		zap.Int("workers", d.opts.Workers),
		zap.Int("queue_size", d.opts.QueueSize),
	)
}

// Enqueue 非阻塞地提交任务
// 队列已满或调度器已停止时任务被记录为 failed，返回 queued=false
func (d *Dispatcher) Enqueue(ctx context.Context, job Job) (string, bool) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	// 记录与请求生命周期解耦
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	d.record(recCtx, job)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.done {
		d.fail(recCtx, job, ErrDispatcherStopped)
		return job.ID, false
	}

	select {
	case d.queue <- job:
		return job.ID, true
	default:
		d.fail(recCtx, job, ErrQueueFull)
		return job.ID, false
	}
}

// Run 同步执行任务，用于显式的重新生成
// 与 worker 一致，执行时长受 opts.Timeout 约束
func (d *Dispatcher) Run(ctx context.Context, job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	d.record(ctx, job)

	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()
	return job.ID, d.execute(ctx, job)
}

// Stop 停止接收新任务并等待队列中任务执行完毕
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.done {
		d.done = true
		close(d.queue)
	}
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		d.logger.Info("排程生成调度器已停止")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("等待生成任务结束超时: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker(n int) {
	defer d.wg.Done()
	for job := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
		if err := d.execute(ctx, job); err != nil {
			d.logger.Debug("生成任务失败", zap.Int("worker", n), zap.String("job_id", job.ID))
		}
		cancel()
	}
}

func (d *Dispatcher) execute(ctx context.Context, job Job) (err error) {
	if d.recorder != nil {
		if rerr := d.recorder.MarkRunning(ctx, job.ID, d.now()); rerr != nil {
			d.logger.Warn("记录生成任务状态失败", zap.String("job_id", job.ID), zap.Error(rerr))
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			d.fail(context.WithoutCancel(ctx), job, err)
			return
		}
		d.finish(context.WithoutCancel(ctx), job, model.JobStatusSucceeded, "")
		if d.onSuccess != nil {
			d.onSuccess(context.WithoutCancel(ctx), job)
		}
	}()

	switch job.Kind {
	case model.JobKindPreview:
		err = d.m.GeneratePreview(ctx, job.OrganizationID, job.UserID, job.WeekStart)
	case model.JobKindWeekly:
		err = d.m.GenerateWeeklySchedules(ctx, job.OrganizationID, job.WeekStart)
	default:
		err = fmt.Errorf("未知的任务类型: %s", job.Kind)
	}
	return err
}

func (d *Dispatcher) record(ctx context.Context, job Job) {
	if d.recorder == nil {
		return
	}
	rec := &model.GenerationJob{
		JobID:          job.ID,
		Kind:           job.Kind,
		OrganizationID: job.OrganizationID,
		WeekStart:      job.WeekStart,
		Status:         model.JobStatusQueued,
	}
	if job.UserID != "" {
		uid := job.UserID
		rec.UserID = &uid
	}
	if err := d.recorder.Create(ctx, rec); err != nil {
		d.logger.Warn("记录生成任务失败", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (d *Dispatcher) fail(ctx context.Context, job Job, cause error) {
	d.logger.Error("排程生成失败",
		zap.String("job_id", job.ID),
		zap.String("kind", job.Kind),
		zap.String("organization_id", job.OrganizationID),
		zap.String("user_id", job.UserID),
		zap.Time("week_start", job.WeekStart),
		zap.Error(cause),
	)
	d.finish(ctx, job, model.JobStatusFailed, cause.Error())
}

func (d *Dispatcher) finish(ctx context.Context, job Job, status, errMsg string) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.MarkFinished(ctx, job.ID, status, errMsg, d.now()); err != nil {
		d.logger.Warn("记录生成任务状态失败", zap.String("job_id", job.ID), zap.Error(err))
	}
}
