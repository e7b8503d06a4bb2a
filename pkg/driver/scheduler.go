// Package driver is the Go SDK a framework scheduler links against: a
// thin client over api/nexuspb's grpc stub that dials the master, streams
// resource offers and status updates into caller-supplied callbacks, and
// reconnects whenever the stream breaks — the Go-native equivalent of a
// Mesos "scheduler driver" (spec.md section 4.6/C8). Grounded on the
// teacher's reconnect-with-backoff idiom in
// master/internal/rm/agentrm/agent.go's EXITED handling, adapted here to
// a grpc client rather than an actor link.
package driver

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/nexus-sched/nexus/api/nexuspb"
)

// Scheduler is implemented by the framework; its callbacks are invoked
// from the driver's background goroutines and must not block for long.
type Scheduler interface {
	ResourceOffer(offer *nexuspb.ResourceOffer)
	StatusUpdate(update *nexuspb.StatusUpdate)
	FrameworkMessage(msg *nexuspb.FrameworkMessageRequest)
	// Disconnected is called whenever the stream to the master breaks; the
	// driver keeps retrying underneath and calls Registered again once
	// reconnected.
	Disconnected(err error)
	Registered(frameworkID string)
}

// Config configures a SchedulerDriver.
type Config struct {
	MasterAddr string
	Name       string
	User       string
	Executor   nexuspb.ExecutorInfo
	Log        *logrus.Entry

	// ReconnectBackoff is the delay between reconnect attempts; defaults to
	// one second.
	ReconnectBackoff time.Duration
}

// SchedulerDriver drives one framework's connection to the master.
type SchedulerDriver struct {
	cfg Config
	sch Scheduler

	mu          sync.Mutex
	conn        *grpc.ClientConn
	client      nexuspb.SchedulerClient
	frameworkID string
	stopped     chan struct{}
}

// NewSchedulerDriver constructs a driver; call Run to start it.
func NewSchedulerDriver(cfg Config, sch Scheduler) *SchedulerDriver {
	if cfg.ReconnectBackoff == 0 {
		cfg.ReconnectBackoff = time.Second
	}
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SchedulerDriver{cfg: cfg, sch: sch, stopped: make(chan struct{})}
}

// Run dials the master, registers, and streams offers/status updates until
// ctx is canceled or Stop is called, reconnecting across transient
// failures (spec.md section 7's "Transient transport failure" applied to
// the driver side of the link).
func (d *SchedulerDriver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.stopped:
			return nil
		default:
		}
		if err := d.runOnce(ctx); err != nil {
			d.sch.Disconnected(err)
			d.cfg.Log.WithError(err).Warn("driver: disconnected from master, retrying")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.stopped:
			return nil
		case <-time.After(d.cfg.ReconnectBackoff):
		}
	}
}

// Stop ends Run's reconnect loop and tears down any open connection.
func (d *SchedulerDriver) Stop() {
	close(d.stopped)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		d.conn.Close()
	}
}

func (d *SchedulerDriver) runOnce(ctx context.Context) error {
	conn, err := grpc.DialContext(ctx, d.cfg.MasterAddr, grpc.WithInsecure(), grpc.WithBlock())
	if err != nil {
		return err
	}
	defer conn.Close()

	client := nexuspb.NewSchedulerClient(conn)
	resp, err := client.Register(ctx, &nexuspb.RegisterRequest{
		Name: d.cfg.Name, User: d.cfg.User, Executor: d.cfg.Executor,
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.conn, d.client, d.frameworkID = conn, client, resp.FrameworkID
	d.mu.Unlock()
	d.sch.Registered(resp.FrameworkID)

	offers, err := client.ResourceOffers(ctx, resp)
	if err != nil {
		return err
	}
	updates, err := client.StatusUpdates(ctx, resp)
	if err != nil {
		return err
	}
	messages, err := client.FrameworkMessages(ctx, resp)
	if err != nil {
		return err
	}

	errCh := make(chan error, 3)
	go func() {
		for {
			offer, err := offers.Recv()
			if err != nil {
				errCh <- err
				return
			}
			d.sch.ResourceOffer(offer)
		}
	}()
	go func() {
		for {
			update, err := updates.Recv()
			if err != nil {
				errCh <- err
				return
			}
			d.sch.StatusUpdate(update)
		}
	}()
	go func() {
		for {
			msg, err := messages.Recv()
			if err != nil {
				errCh <- err
				return
			}
			d.sch.FrameworkMessage(msg)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// LaunchTasks accepts an offer, launching the given tasks against it
// (spec.md section 4.2's LAUNCH_TASKS(offerId, tasks)).
func (d *SchedulerDriver) LaunchTasks(ctx context.Context, offerID string, tasks []nexuspb.LaunchTask) error {
	client, frameworkID := d.current()
	_, err := client.LaunchTasks(ctx, &nexuspb.LaunchTasksRequest{FrameworkID: frameworkID, OfferID: offerID, Tasks: tasks})
	return err
}

// KillTask asks the master to kill a task.
func (d *SchedulerDriver) KillTask(ctx context.Context, taskID string) error {
	client, frameworkID := d.current()
	_, err := client.KillTask(ctx, &nexuspb.KillTaskRequest{FrameworkID: frameworkID, TaskID: taskID})
	return err
}

// SendFrameworkMessage relays an opaque blob to a slave's executor.
func (d *SchedulerDriver) SendFrameworkMessage(ctx context.Context, slaveID string, data []byte) error {
	client, frameworkID := d.current()
	_, err := client.FrameworkMessage(ctx, &nexuspb.FrameworkMessageRequest{
		FrameworkID: frameworkID, SlaveID: slaveID, Data: data,
	})
	return err
}

func (d *SchedulerDriver) current() (nexuspb.SchedulerClient, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.client, d.frameworkID
}
