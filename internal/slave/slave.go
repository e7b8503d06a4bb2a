// Package slave implements the slave state machine (C6): registers with
// the master, launches and kills executors through the isolation module
// (C7), forwards tasks and status updates, and reconnects across master
// failover (spec.md section 4.3). Like internal/master, it is a single
// pkg/agent.Actor, grounded on the teacher's agentrm.agent actor shape.
package slave

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nexus-sched/nexus/internal/isolation"
	"github.com/nexus-sched/nexus/internal/log"
	"github.com/nexus-sched/nexus/pkg/agent"
	"github.com/nexus-sched/nexus/pkg/resources"
)

// KillGracePeriod is how long the slave waits for a terminal status update
// after forwarding KILL_TASK to a running executor before escalating to
// killing the executor process outright (spec.md section 4.3).
const KillGracePeriod = 10 * time.Second

// Config configures a Slave.
type Config struct {
	Hostname string
	Total    resources.Resources
	WorkDir  string
	Isolate  isolation.Module

	// ExecutorEndpoint is the address of this slave's ExecutorServer
	// listener, handed to launched executors as NEXUS_EXECUTOR_ENDPOINT so
	// they can dial back and register (spec.md section 4.3).
	ExecutorEndpoint string
}

// Slave is the slave state machine actor. ID and MasterSender are set once
// registration with the master completes; both are empty/nil beforehand.
type Slave struct {
	cfg Config
	rl  *log.RateLimiter

	id           string
	masterSender Sender
	generation   int // bumped on every newLeader, invalidates in-flight timers

	frameworks map[string]*FrameworkRecord
}

// New constructs an unregistered Slave.
func New(cfg Config) *Slave {
	return &Slave{
		cfg:        cfg,
		rl:         log.NewRateLimiter(),
		frameworks: make(map[string]*FrameworkRecord),
	}
}

// Receive implements pkg/agent.Actor.
func (s *Slave) Receive(ctx *agent.Context) error {
	switch msg := ctx.Message().(type) {
	case agent.PreStart:
		go s.drainExits(ctx.Self())
	case agent.PostStop:
		return nil

	case SlaveRegistered:
		s.id = msg.SlaveID

	case NewLeader:
		s.handleNewLeader(ctx, msg)

	case RunTask:
		s.handleRunTask(ctx, msg)

	case KillTask:
		s.handleKillTask(ctx, msg)

	case killTimeoutMsg:
		s.handleKillTimeout(ctx, msg)

	case ExecutorRegistered:
		s.handleExecutorRegistered(ctx, msg)

	case ExecutorStatusUpdate:
		s.handleExecutorStatusUpdate(ctx, msg)

	case executorExitedMsg:
		s.handleExecutorExited(ctx, msg)

	case ResourcesChanged:
		s.handleResourcesChanged(ctx, msg)

	default:
		ctx.Log().Warnf("slave: unhandled message %T", msg)
	}
	return nil
}

// drainExits forwards isolation.Exits() events into the actor's own
// message loop (spec.md section 9's leader-listener pattern, applied to
// any external callback source: never touch actor state off-loop).
func (s *Slave) drainExits(self *agent.Ref) {
	for exited := range s.cfg.Isolate.Exits() {
		self.Tell(executorExitedMsg{
			frameworkID: exited.FrameworkID,
			code:        exited.Status.Code,
			message:     exited.Status.Message,
		})
	}
}

func (s *Slave) handleNewLeader(ctx *agent.Context, msg NewLeader) {
	s.generation++
	s.masterSender = msg.Sender
	if msg.Sender == nil {
		ctx.Log().Warn("slave: no leader known, pausing outbound work")
		return
	}
	ctx.Log().WithField("master", msg.MasterIdentity).Info("slave: reconnecting to new leader")

	tasks := make([]reregisterTaskWire, 0)
	for fwID, fw := range s.frameworks {
		for _, t := range fw.Tasks {
			tasks = append(tasks, reregisterTaskWire{
				FrameworkID: fwID, TaskID: t.ID, Resources: t.Resources, State: int(t.State),
			})
		}
	}
	s.sendToMaster(ctx, "ReregisterSlave", reregisterSlaveWire{
		SlaveID: s.id, Hostname: s.cfg.Hostname, Total: s.cfg.Total, Tasks: tasks,
	})
}

type reregisterTaskWire struct {
	FrameworkID string
	TaskID      string
	Resources   resources.Resources
	State       int
}

type reregisterSlaveWire struct {
	SlaveID  string
	Hostname string
	Total    resources.Resources
	Tasks    []reregisterTaskWire
}

func (s *Slave) handleRunTask(ctx *agent.Context, msg RunTask) {
	fw, ok := s.frameworks[msg.FrameworkID]
	if !ok {
		fw = newFrameworkRecord(msg.FrameworkID)
		fw.Executor = msg.Executor
		s.frameworks[msg.FrameworkID] = fw
	}

	if s.wouldExceedBudget(msg.Task.Resources) {
		log.Failure(s.rl, "task-exceeds-budget", logrus.Fields{"framework": msg.FrameworkID}, nil)
		return
	}

	switch fw.ExecutorSt {
	case ExecutorRunning:
		s.dispatchToExecutor(ctx, fw, msg.Task)
	default:
		fw.QueuedTasks = append(fw.QueuedTasks, msg.Task)
		if fw.ExecutorSt != ExecutorStarting {
			s.launchExecutor(ctx, fw)
		}
	}
}

// wouldExceedBudget checks add against the slave's total capacity minus
// everything already committed across every framework: a single
// framework's own usage never exceeding Total is not sufficient, since
// several frameworks share one slave (spec.md section 3).
func (s *Slave) wouldExceedBudget(add resources.Resources) bool {
	committed := resources.New()
	for _, fw := range s.frameworks {
		committed = committed.Add(fw.used())
		for _, q := range fw.QueuedTasks {
			committed = committed.Add(q.Resources)
		}
	}
	return !s.cfg.Total.Contains(committed.Add(add))
}

func (s *Slave) launchExecutor(ctx *agent.Context, fw *FrameworkRecord) {
	fw.ExecutorSt = ExecutorStarting
	handle, err := s.cfg.Isolate.LaunchExecutor(context.Background(), isolation.FrameworkInfo{
		FrameworkID:      fw.ID,
		ExecutorURI:      fw.Executor.URI,
		ExecutorData:     fw.Executor.Data,
		WorkDir:          s.cfg.WorkDir,
		ExecutorEndpoint: s.cfg.ExecutorEndpoint,
	})
	if err != nil {
		log.Failure(s.rl, "launch-failed", logrus.Fields{"framework": fw.ID}, err)
		for _, q := range fw.QueuedTasks {
			s.reportStatus(ctx, fw.ID, q.ID, TaskFailed, err.Error())
		}
		fw.QueuedTasks = nil
		delete(s.frameworks, fw.ID)
		return
	}
	fw.Handle = handle
}

func (s *Slave) handleExecutorRegistered(ctx *agent.Context, msg ExecutorRegistered) {
	fw, ok := s.frameworks[msg.FrameworkID]
	if !ok || fw.ExecutorSt == ExecutorGone {
		return
	}
	fw.ExecutorSt = ExecutorRunning
	fw.ExecutorSender = msg.Sender
	queued := fw.QueuedTasks
	fw.QueuedTasks = nil
	for _, q := range queued {
		s.dispatchToExecutor(ctx, fw, q)
	}
}

// executorRunTaskWire/executorKillTaskWire are the payloads sent down
// FrameworkRecord.ExecutorSender, the executor-facing mirror of RunTask and
// KillTask arriving from the master (spec.md section 4.3, "forward to
// executor").
type executorRunTaskWire struct {
	TaskID    string
	Resources resources.Resources
	Name      string
	Args      []byte
}

type executorKillTaskWire struct {
	TaskID string
}

func (s *Slave) dispatchToExecutor(ctx *agent.Context, fw *FrameworkRecord, task QueuedTask) {
	fw.Tasks[task.ID] = &LocalTask{ID: task.ID, Resources: task.Resources, Name: task.Name, Args: task.Args, State: TaskStarting}
	ctx.Log().WithFields(logrus.Fields{"framework": fw.ID, "task": task.ID}).Info("dispatching task to executor")
	if fw.ExecutorSender == nil {
		return
	}
	wire := executorRunTaskWire{TaskID: task.ID, Resources: task.Resources, Name: task.Name, Args: task.Args}
	if err := fw.ExecutorSender.Send("RunTask", wire); err != nil {
		log.Failure(s.rl, "executor-send-failed", logrus.Fields{"framework": fw.ID, "task": task.ID}, err)
	}
}

func (s *Slave) handleKillTask(ctx *agent.Context, msg KillTask) {
	fw, ok := s.frameworks[msg.FrameworkID]
	if !ok {
		return
	}
	for i, q := range fw.QueuedTasks {
		if q.ID == msg.TaskID {
			fw.QueuedTasks = append(fw.QueuedTasks[:i], fw.QueuedTasks[i+1:]...)
			s.reportStatus(ctx, fw.ID, msg.TaskID, TaskKilled, "killed while queued")
			return
		}
	}
	task, ok := fw.Tasks[msg.TaskID]
	if !ok || task.State.Terminal() {
		return
	}
	if fw.ExecutorSender != nil {
		if err := fw.ExecutorSender.Send("KillTask", executorKillTaskWire{TaskID: msg.TaskID}); err != nil {
			log.Failure(s.rl, "executor-send-failed", logrus.Fields{"framework": fw.ID, "task": msg.TaskID}, err)
		}
	}
	fw.KillDeadline[msg.TaskID] = struct{}{}
	generation, taskID, frameworkID := s.generation, msg.TaskID, msg.FrameworkID
	self := ctx.Self()
	time.AfterFunc(KillGracePeriod, func() {
		self.Tell(killTimeoutMsg{frameworkID: frameworkID, taskID: taskID, generation: generation})
	})
}

func (s *Slave) handleKillTimeout(ctx *agent.Context, msg killTimeoutMsg) {
	if msg.generation != s.generation {
		return // stale timer from a prior connection generation
	}
	fw, ok := s.frameworks[msg.frameworkID]
	if !ok {
		return
	}
	if _, armed := fw.KillDeadline[msg.taskID]; !armed {
		return
	}
	delete(fw.KillDeadline, msg.taskID)
	task, ok := fw.Tasks[msg.taskID]
	if !ok || task.State.Terminal() {
		return
	}
	ctx.Log().WithFields(logrus.Fields{"framework": fw.ID, "task": msg.taskID}).
		Warn("kill grace period expired, killing executor")
	if err := s.cfg.Isolate.KillExecutor(context.Background(), fw.Handle); err != nil {
		log.Failure(s.rl, "kill-executor-failed", logrus.Fields{"framework": fw.ID}, err)
	}
	s.declareExecutorGone(ctx, fw, "kill grace period expired")
}

func (s *Slave) handleExecutorStatusUpdate(ctx *agent.Context, msg ExecutorStatusUpdate) {
	fw, ok := s.frameworks[msg.FrameworkID]
	if !ok {
		return
	}
	task, ok := fw.Tasks[msg.TaskID]
	if !ok || task.State.Terminal() {
		return
	}
	task.State = msg.State
	if task.State.Terminal() {
		delete(fw.KillDeadline, msg.TaskID)
	}
	s.reportStatus(ctx, fw.ID, task.ID, task.State, msg.Message)
}

func (s *Slave) handleExecutorExited(ctx *agent.Context, msg executorExitedMsg) {
	fw, ok := s.frameworks[msg.frameworkID]
	if !ok {
		return
	}
	s.declareExecutorGone(ctx, fw, msg.message)
}

func (s *Slave) declareExecutorGone(ctx *agent.Context, fw *FrameworkRecord, reason string) {
	fw.ExecutorSt = ExecutorGone
	for _, task := range fw.Tasks {
		if task.State.Terminal() {
			continue
		}
		task.State = TaskLost
		s.reportStatus(ctx, fw.ID, task.ID, TaskLost, reason)
	}
	for _, q := range fw.QueuedTasks {
		s.reportStatus(ctx, fw.ID, q.ID, TaskLost, reason)
	}
	fw.QueuedTasks = nil
	fw.KillDeadline = make(map[string]struct{})
	fw.ExecutorSender = nil
	// The framework record itself survives: late messages referencing it
	// must still resolve (spec.md section 4.3).
}

func (s *Slave) handleResourcesChanged(ctx *agent.Context, msg ResourcesChanged) {
	fw, ok := s.frameworks[msg.FrameworkID]
	if !ok || fw.ExecutorSt != ExecutorRunning {
		return
	}
	if err := s.cfg.Isolate.ResourcesChanged(context.Background(), fw.Handle, msg.Resources); err != nil {
		log.Failure(s.rl, "resources-changed-failed", logrus.Fields{"framework": fw.ID}, err)
	}
}

func (s *Slave) reportStatus(ctx *agent.Context, frameworkID, taskID string, state TaskState, message string) {
	s.sendToMaster(ctx, "StatusUpdate", statusUpdateWire{
		SlaveID: s.id, FrameworkID: frameworkID, TaskID: taskID, State: int(state), Message: message,
	})
}

type statusUpdateWire struct {
	SlaveID     string
	FrameworkID string
	TaskID      string
	State       int
	Message     string
}

// sendToMaster sends once; on failure it retries with backoff up to 3
// times before giving up, matching spec.md section 4.3's "forward to
// master with retry on master transport failure." Retries always go to the
// sender that failed, even if a new leader has since replaced it; the
// generation only appears in the give-up log line.
func (s *Slave) sendToMaster(ctx *agent.Context, kind string, payload interface{}) {
	if s.masterSender == nil {
		return
	}
	if err := s.masterSender.Send(kind, payload); err == nil {
		return
	}
	generation, sender := s.generation, s.masterSender
	go retryWithBackoff(generation, sender, kind, payload, s.rl)
}

func retryWithBackoff(generation int, sender Sender, kind string, payload interface{}, rl *log.RateLimiter) {
	backoff := 100 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		time.Sleep(backoff)
		if err := sender.Send(kind, payload); err == nil {
			return
		}
		backoff *= 2
	}
	log.Failure(rl, "master-send-failed", logrus.Fields{"kind": kind}, fmt.Errorf("exhausted retries for generation %d", generation))
}
