// Package master implements the master state machine (C5): framework and
// slave registration, offer issuance via the allocator contract, task
// tracking, and failover reconciliation (spec.md section 4.2). It is a
// single pkg/agent.Actor, so every state transition is serialized by one
// message loop exactly as spec.md section 5 requires; the actor shape
// itself is grounded on the teacher's agentrm.agent actor
// (master/internal/rm/agentrm/agent.go), generalized from "one agent per
// worker host" to "one agent, period" since the master has no sibling
// instances within a process.
package master

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nexus-sched/nexus/internal/allocator"
	"github.com/nexus-sched/nexus/internal/log"
	"github.com/nexus-sched/nexus/internal/store"
	"github.com/nexus-sched/nexus/pkg/agent"
	"github.com/nexus-sched/nexus/pkg/id"
	"github.com/nexus-sched/nexus/pkg/resources"
)

// Config configures a Master.
type Config struct {
	AllocatorPolicy      string
	ReconciliationWindow time.Duration // default: 10x the slave heartbeat interval, per spec.md section 9

	// Store persists framework registrations and the leader epoch across
	// restarts (spec.md section 6, "persisted state"); nil disables
	// persistence entirely, trading crash recovery for one less moving part.
	Store *store.Store
}

// DefaultReconciliationWindow answers spec.md section 9's open question on
// reconciliation window length: 10x a 3-second heartbeat interval.
const DefaultReconciliationWindow = 30 * time.Second

// Master is the master state machine actor.
type Master struct {
	cfg       Config
	allocPlan allocator.Allocator
	mint      *id.Mint
	rl        *log.RateLimiter

	leading bool
	epoch   int64
	selfID  string

	frameworks     map[string]*Framework
	slaves         map[string]*Slave
	offers         map[string]*Offer
	nextSlaveOrder int

	reconciling    bool
	reconcileEpoch int64
}

// New constructs a Master in standby state; it only begins accepting
// registrations once it observes LeaderChanged naming itself as leader.
func New(cfg Config) (*Master, error) {
	if cfg.ReconciliationWindow <= 0 {
		cfg.ReconciliationWindow = DefaultReconciliationWindow
	}
	alloc, err := allocator.MakeAllocator(cfg.AllocatorPolicy)
	if err != nil {
		return nil, fmt.Errorf("master: %w", err)
	}
	return &Master{
		cfg:        cfg,
		allocPlan:  alloc,
		rl:         log.NewRateLimiter(),
		frameworks: make(map[string]*Framework),
		slaves:     make(map[string]*Slave),
		offers:     make(map[string]*Offer),
	}, nil
}

// Receive implements pkg/agent.Actor.
func (m *Master) Receive(ctx *agent.Context) error {
	switch msg := ctx.Message().(type) {
	case agent.PreStart, agent.PostStop:
		return nil

	case LeaderChanged:
		m.handleLeaderChanged(ctx, msg)

	case reconciliationExpired:
		if msg.epoch == m.epoch {
			m.reconciling = false
			ctx.Log().Info("reconciliation window closed")
		}

	case RegisterFramework:
		if !m.requireLeading(ctx) {
			return nil
		}
		m.handleRegisterFramework(ctx, msg)

	case UnregisterFramework:
		if !m.requireLeading(ctx) {
			return nil
		}
		m.handleUnregisterFramework(ctx, msg.FrameworkID, "unregistered", TaskKilled)

	case RegisterSlave:
		if !m.requireLeading(ctx) {
			return nil
		}
		m.handleRegisterSlave(ctx, msg)

	case ReregisterSlave:
		if !m.requireLeading(ctx) {
			return nil
		}
		m.handleReregisterSlave(ctx, msg)

	case StatusUpdate:
		if !m.requireLeading(ctx) {
			return nil
		}
		m.handleStatusUpdate(ctx, msg)

	case LaunchTasks:
		if !m.requireLeading(ctx) {
			return nil
		}
		m.handleLaunchTasks(ctx, msg)

	case KillTask:
		if !m.requireLeading(ctx) {
			return nil
		}
		m.handleKillTask(ctx, msg)

	case FrameworkMessage:
		if !m.requireLeading(ctx) {
			return nil
		}
		m.handleFrameworkMessage(ctx, msg)

	case PeerExited:
		if !m.requireLeading(ctx) {
			return nil
		}
		m.handlePeerExited(ctx, msg)

	default:
		ctx.Log().Warnf("master: unhandled message %T", msg)
	}
	return nil
}

func (m *Master) requireLeading(ctx *agent.Context) bool {
	if m.leading {
		return true
	}
	ctx.Log().Debug("master: ignoring message while in standby")
	return false
}

func (m *Master) handleLeaderChanged(ctx *agent.Context, msg LeaderChanged) {
	if msg.EpochID <= m.epoch && m.epoch != 0 {
		ctx.Log().Warnf("master: ignoring stale epoch %d (current %d)", msg.EpochID, m.epoch)
		return
	}
	m.epoch = msg.EpochID
	m.selfID = msg.SelfID
	wasLeading := m.leading
	m.leading = msg.Leader == msg.SelfID && msg.Leader != ""
	if m.leading && !wasLeading {
		m.becomeLeading(ctx)
	} else if !m.leading && wasLeading {
		m.becomeStandby(ctx)
	}
}

func (m *Master) becomeLeading(ctx *agent.Context) {
	ctx.Log().WithField("epoch", m.epoch).Info("master: becoming leading")
	m.frameworks = make(map[string]*Framework)
	m.slaves = make(map[string]*Slave)
	m.offers = make(map[string]*Offer)
	m.nextSlaveOrder = 0
	m.mint = id.NewMint(m.epoch)
	m.reconciling = true
	m.reconcileEpoch = m.epoch

	if m.cfg.Store != nil {
		if err := m.cfg.Store.SaveEpoch(m.epoch); err != nil {
			log.Failure(m.rl, "persist-epoch-failed", logrus.Fields{"epoch": m.epoch}, err)
		}
		snaps, err := m.cfg.Store.LoadFrameworks()
		if err != nil {
			log.Failure(m.rl, "load-frameworks-failed", logrus.Fields{}, err)
		}
		for _, snap := range snaps {
			fw := newFramework(snap.ID)
			fw.Name = snap.Name
			fw.User = snap.User
			fw.PendingReconnect = true
			m.frameworks[fw.ID] = fw
		}
	}

	epoch := m.epoch
	time.AfterFunc(m.cfg.ReconciliationWindow, func() {
		ctx.Self().Tell(reconciliationExpired{epoch: epoch})
	})
}

func (m *Master) becomeStandby(ctx *agent.Context) {
	ctx.Log().Info("master: becoming standby")
}

func (m *Master) handleRegisterFramework(ctx *agent.Context, msg RegisterFramework) {
	fw := newFramework(m.mint.Next(id.Framework))
	fw.Name = msg.Name
	fw.User = msg.User
	fw.Executor = msg.Executor
	fw.Sender = msg.Sender
	m.frameworks[fw.ID] = fw
	ctx.Log().WithFields(logrus.Fields{"framework": fw.ID, "name": fw.Name}).Info("framework registered")

	if m.cfg.Store != nil {
		if err := m.cfg.Store.SaveFramework(store.FrameworkSnapshot{ID: fw.ID, Name: fw.Name, User: fw.User}); err != nil {
			log.Failure(m.rl, "persist-framework-failed", logrus.Fields{"framework": fw.ID}, err)
		}
	}

	if ctx.ExpectingResponse() {
		ctx.Respond(FrameworkRegistered{FrameworkID: fw.ID})
	}

	m.runAllocator(ctx, func(view allocator.ClusterView) []allocator.Bundle {
		return m.allocPlan.FrameworkAdded(view, allocator.FrameworkSnapshot{ID: fw.ID, Held: fw.held()})
	})
}

// handleUnregisterFramework tears down fw's tasks and offers. state is the
// terminal state reported for its tasks: TaskKilled for an explicit
// UNREGISTER_FRAMEWORK, TaskLost when the framework vanished out from
// under the master (transport loss, protocol violation) — spec.md
// section 8 scenario S6 expects LOST semantics for the latter.
func (m *Master) handleUnregisterFramework(ctx *agent.Context, frameworkID, reason string, state TaskState) {
	fw, ok := m.frameworks[frameworkID]
	if !ok {
		return
	}
	m.killAllTasks(ctx, fw, state)
	for offerID := range fw.ActiveOffers {
		m.invalidateOffer(offerID)
	}
	fw.Removed = true
	delete(m.frameworks, frameworkID)
	ctx.Log().WithField("framework", frameworkID).Infof("framework removed: %s", reason)

	if m.cfg.Store != nil {
		if err := m.cfg.Store.DeleteFramework(frameworkID); err != nil {
			log.Failure(m.rl, "delete-framework-failed", logrus.Fields{"framework": frameworkID}, err)
		}
	}

	snapshot := allocator.FrameworkSnapshot{ID: fw.ID, Held: fw.held(), Removed: true}
	m.runAllocator(ctx, func(view allocator.ClusterView) []allocator.Bundle {
		return m.allocPlan.FrameworkRemoved(view, snapshot)
	})
}

func (m *Master) handleRegisterSlave(ctx *agent.Context, msg RegisterSlave) {
	slave := &Slave{
		ID:       m.mint.Next(id.Slave),
		Hostname: msg.Hostname,
		Total:    msg.Total,
		Used:     resources.New(),
		Offered:  resources.New(),
		Sender:   msg.Sender,
		Order:    m.nextSlaveOrder,
	}
	m.nextSlaveOrder++
	m.slaves[slave.ID] = slave
	ctx.Log().WithFields(logrus.Fields{"slave": slave.ID, "host": slave.Hostname}).Info("slave registered")

	if ctx.ExpectingResponse() {
		ctx.Respond(SlaveRegistered{SlaveID: slave.ID})
	}

	m.runAllocator(ctx, func(view allocator.ClusterView) []allocator.Bundle {
		return m.allocPlan.SlaveAdded(view, allocator.SlaveSnapshot{ID: slave.ID, Free: slave.free(), Order: slave.Order})
	})
}

func (m *Master) handleReregisterSlave(ctx *agent.Context, msg ReregisterSlave) {
	slave := &Slave{
		ID:       msg.SlaveID,
		Hostname: msg.Hostname,
		Total:    msg.Total,
		Used:     resources.New(),
		Offered:  resources.New(),
		Sender:   msg.Sender,
		Order:    m.nextSlaveOrder,
	}
	m.nextSlaveOrder++

	for _, rt := range msg.Tasks {
		fw, ok := m.frameworks[rt.FrameworkID]
		if !ok {
			fw = newFramework(rt.FrameworkID)
			fw.PendingReconnect = true
			m.frameworks[fw.ID] = fw
		}
		task := &Task{
			ID:          rt.TaskID,
			FrameworkID: rt.FrameworkID,
			SlaveID:     slave.ID,
			Resources:   rt.Resources,
			State:       rt.State,
		}
		fw.Tasks[task.ID] = task
		if !task.State.Terminal() {
			slave.Used = slave.Used.Add(task.Resources)
		}
	}
	m.slaves[slave.ID] = slave
	ctx.Log().WithField("slave", slave.ID).Info("slave reregistered")
	if !m.reconciling {
		m.runAllocator(ctx, func(view allocator.ClusterView) []allocator.Bundle {
			return m.allocPlan.SlaveAdded(view, allocator.SlaveSnapshot{ID: slave.ID, Free: slave.free(), Order: slave.Order})
		})
	}
}

func (m *Master) handleStatusUpdate(ctx *agent.Context, msg StatusUpdate) {
	fw, ok := m.frameworks[msg.FrameworkID]
	if !ok {
		log.Failure(m.rl, "status-unknown-framework", logrus.Fields{"framework": msg.FrameworkID}, nil)
		return
	}
	task, ok := fw.Tasks[msg.TaskID]
	if !ok {
		log.Failure(m.rl, "status-unknown-task", logrus.Fields{"task": msg.TaskID}, nil)
		return
	}
	if task.State.Terminal() {
		// Terminal monotonicity (spec.md section 8, property 4): drop.
		return
	}
	task.State = msg.State
	m.sendToFramework(fw, "StatusUpdate", msg)
	if msg.State.Terminal() {
		if slave, ok := m.slaves[task.SlaveID]; ok {
			slave.Used = slave.Used.Sub(task.Resources)
		}
		snapshot := allocator.FrameworkSnapshot{ID: fw.ID, Held: fw.held()}
		m.runAllocator(ctx, func(view allocator.ClusterView) []allocator.Bundle {
			return m.allocPlan.ResourcesRecovered(view, snapshot.ID, task.SlaveID, task.Resources)
		})
	}
}

func (m *Master) handleLaunchTasks(ctx *agent.Context, msg LaunchTasks) {
	fw, ok := m.frameworks[msg.FrameworkID]
	if !ok {
		return
	}
	offer, ok := m.offers[msg.OfferID]
	if !ok || offer.FrameworkID != fw.ID {
		log.Failure(m.rl, "launch-unknown-offer", logrus.Fields{"offer": msg.OfferID}, nil)
		return
	}

	seen := make(map[string]struct{})
	consumed := make(map[string]resources.Resources)
	for _, t := range msg.Tasks {
		if _, dup := seen[t.TaskID]; dup {
			m.protocolViolation(ctx, fw, fmt.Sprintf("duplicate task id %s in LAUNCH_TASKS", t.TaskID))
			return
		}
		seen[t.TaskID] = struct{}{}
		if _, exists := fw.Tasks[t.TaskID]; exists {
			m.protocolViolation(ctx, fw, fmt.Sprintf("task id %s already exists", t.TaskID))
			return
		}
		available, ok := offer.Slaves[t.SlaveID]
		if !ok || !available.Sub(consumed[t.SlaveID]).Contains(t.Resources) {
			m.protocolViolation(ctx, fw, fmt.Sprintf("task %s exceeds offered resources on slave %s", t.TaskID, t.SlaveID))
			return
		}
		consumed[t.SlaveID] = consumed[t.SlaveID].Add(t.Resources)
	}

	for _, t := range msg.Tasks {
		task := &Task{
			ID: t.TaskID, FrameworkID: fw.ID, SlaveID: t.SlaveID,
			Resources: t.Resources, Name: t.Name, Args: t.Args, State: TaskStarting,
		}
		fw.Tasks[task.ID] = task
		slave := m.slaves[t.SlaveID]
		slave.Used = slave.Used.Add(t.Resources)
		slave.Offered = slave.Offered.Sub(t.Resources)
		m.sendToSlave(slave, "RunTask", runTaskWire{FrameworkID: fw.ID, Executor: fw.Executor, Task: t})
	}

	for slaveID, granted := range offer.Slaves {
		unused := granted.Sub(consumed[slaveID])
		if !unused.IsZero() {
			if slave, ok := m.slaves[slaveID]; ok {
				slave.Offered = slave.Offered.Sub(unused)
			}
			snapshot := allocator.FrameworkSnapshot{ID: fw.ID, Held: fw.held()}
			m.runAllocator(ctx, func(view allocator.ClusterView) []allocator.Bundle {
				return m.allocPlan.ResourcesUnused(view, snapshot.ID, slaveID, unused)
			})
		}
	}
	// Every resource of the offer has already left slave.Offered above, as
	// used or as unused, so only the offer record itself is dropped here.
	delete(m.offers, msg.OfferID)
	delete(fw.ActiveOffers, msg.OfferID)
}

// runTaskWire is the RUN_TASK wire payload sent to a slave.
type runTaskWire struct {
	FrameworkID string
	Executor    ExecutorInfo
	Task        LaunchTask
}

func (m *Master) handleKillTask(ctx *agent.Context, msg KillTask) {
	fw, ok := m.frameworks[msg.FrameworkID]
	if !ok {
		return
	}
	task, ok := fw.Tasks[msg.TaskID]
	if !ok || task.State.Terminal() {
		return
	}
	if slave, ok := m.slaves[task.SlaveID]; ok {
		m.sendToSlave(slave, "KillTask", msg)
	}
}

func (m *Master) handleFrameworkMessage(ctx *agent.Context, msg FrameworkMessage) {
	if msg.FromSlave {
		if fw, ok := m.frameworks[msg.FrameworkID]; ok {
			m.sendToFramework(fw, "FrameworkMessage", msg)
		}
		return
	}
	if slave, ok := m.slaves[msg.SlaveID]; ok {
		m.sendToSlave(slave, "FrameworkMessage", msg)
	}
}

func (m *Master) handlePeerExited(ctx *agent.Context, msg PeerExited) {
	if msg.FrameworkID != "" {
		m.handleUnregisterFramework(ctx, msg.FrameworkID, "transport lost", TaskLost)
	}
	if msg.SlaveID != "" {
		m.declareSlaveLost(ctx, msg.SlaveID)
	}
}

func (m *Master) declareSlaveLost(ctx *agent.Context, slaveID string) {
	_, ok := m.slaves[slaveID]
	if !ok {
		return
	}
	for offerID, offer := range m.offers {
		if _, onSlave := offer.Slaves[slaveID]; onSlave {
			if fw, ok := m.frameworks[offer.FrameworkID]; ok {
				delete(fw.ActiveOffers, offerID)
			}
			delete(m.offers, offerID)
		}
	}
	for _, fw := range m.frameworks {
		for _, task := range fw.Tasks {
			if task.SlaveID == slaveID && !task.State.Terminal() {
				task.State = TaskLost
				m.sendToFramework(fw, "StatusUpdate", StatusUpdate{
					SlaveID: slaveID, FrameworkID: fw.ID, TaskID: task.ID, State: TaskLost, Message: "slave lost",
				})
			}
		}
	}
	delete(m.slaves, slaveID)
	ctx.Log().WithField("slave", slaveID).Warn("slave lost")
	m.allocPlan.SlaveRemoved(m.clusterView(), allocator.SlaveSnapshot{ID: slaveID})
}

func (m *Master) killAllTasks(ctx *agent.Context, fw *Framework, state TaskState) {
	for _, task := range fw.Tasks {
		if task.State.Terminal() {
			continue
		}
		task.State = state
		if slave, ok := m.slaves[task.SlaveID]; ok {
			slave.Used = slave.Used.Sub(task.Resources)
			m.sendToSlave(slave, "KillTask", KillTask{FrameworkID: fw.ID, TaskID: task.ID})
		}
	}
}

func (m *Master) protocolViolation(ctx *agent.Context, fw *Framework, reason string) {
	log.Failure(m.rl, "protocol-violation", logrus.Fields{"framework": fw.ID}, errors.New(reason))
	m.handleUnregisterFramework(ctx, fw.ID, "protocol violation: "+reason, TaskLost)
}

func (m *Master) invalidateOffer(offerID string) {
	offer, ok := m.offers[offerID]
	if !ok {
		return
	}
	for slaveID, res := range offer.Slaves {
		if slave, ok := m.slaves[slaveID]; ok {
			slave.Offered = slave.Offered.Sub(res)
		}
	}
	delete(m.offers, offerID)
}

// runAllocator invokes gen against the current cluster view, then issues
// any returned bundles as offers. gen lets each call site express "what
// allocator callback applies here" without duplicating the offer-issuance
// plumbing (spec.md section 4.2, "Offer issuance").
func (m *Master) runAllocator(ctx *agent.Context, gen func(allocator.ClusterView) []allocator.Bundle) {
	if !m.leading || m.reconciling {
		return
	}
	view := m.clusterView()
	bundles := m.safeAllocate(ctx, func() []allocator.Bundle { return gen(view) })
	for _, bundle := range bundles {
		m.issueOffer(ctx, bundle)
	}
}

func (m *Master) safeAllocate(ctx *agent.Context, f func() []allocator.Bundle) (bundles []allocator.Bundle) {
	defer func() {
		if r := recover(); r != nil {
			log.Failure(m.rl, "allocator-error", logrus.Fields{}, fmt.Errorf("%v", r))
			bundles = nil
		}
	}()
	return f()
}

func (m *Master) issueOffer(ctx *agent.Context, bundle allocator.Bundle) {
	fw, ok := m.frameworks[bundle.FrameworkID]
	if !ok || fw.Removed {
		return
	}
	offer := &Offer{
		ID:          m.mint.Next(id.Offer),
		FrameworkID: fw.ID,
		Epoch:       m.epoch,
		Slaves:      make(map[string]resources.Resources),
	}
	for _, sr := range bundle.Slaves {
		slave, ok := m.slaves[sr.SlaveID]
		if !ok {
			continue
		}
		slave.Offered = slave.Offered.Add(sr.Resources)
		offer.Slaves[sr.SlaveID] = sr.Resources
	}
	if len(offer.Slaves) == 0 {
		return
	}
	m.offers[offer.ID] = offer
	fw.ActiveOffers[offer.ID] = struct{}{}
	m.sendToFramework(fw, "ResourceOffer", resourceOfferWire{OfferID: offer.ID, Slaves: offer.Slaves})
}

// resourceOfferWire is the RESOURCE_OFFER wire payload.
type resourceOfferWire struct {
	OfferID string
	Slaves  map[string]resources.Resources
}

func (m *Master) sendToFramework(fw *Framework, kind string, payload interface{}) {
	if fw.Sender == nil {
		return
	}
	if err := fw.Sender.Send(kind, payload); err != nil {
		log.Failure(m.rl, "send-framework-failed", logrus.Fields{"framework": fw.ID}, err)
	}
}

func (m *Master) sendToSlave(slave *Slave, kind string, payload interface{}) {
	if slave.Sender == nil {
		return
	}
	if err := slave.Sender.Send(kind, payload); err != nil {
		log.Failure(m.rl, "send-slave-failed", logrus.Fields{"slave": slave.ID}, err)
	}
}

func (m *Master) clusterView() allocator.ClusterView {
	frameworks := make([]allocator.FrameworkSnapshot, 0, len(m.frameworks))
	for _, fw := range m.frameworks {
		frameworks = append(frameworks, allocator.FrameworkSnapshot{ID: fw.ID, Held: fw.held(), Removed: fw.Removed})
	}
	slaves := make([]allocator.SlaveSnapshot, 0, len(m.slaves))
	for _, s := range m.slaves {
		slaves = append(slaves, allocator.SlaveSnapshot{ID: s.ID, Free: s.free(), Order: s.Order})
	}
	return staticView{frameworks: frameworks, slaves: slaves}
}

type staticView struct {
	frameworks []allocator.FrameworkSnapshot
	slaves     []allocator.SlaveSnapshot
}

func (v staticView) Frameworks() []allocator.FrameworkSnapshot { return v.frameworks }
func (v staticView) Slaves() []allocator.SlaveSnapshot          { return v.slaves }
