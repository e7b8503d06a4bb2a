package leader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"golang.org/x/time/rate"
)

// EtcdConfig configures an EtcdWatcher.
type EtcdConfig struct {
	Endpoints   []string
	Prefix      string // election key prefix, e.g. "/nexus/master-election"
	SessionTTL  time.Duration
	DialTimeout time.Duration
}

// DefaultEtcdConfig matches spec.md section 6's configuration defaults.
func DefaultEtcdConfig() EtcdConfig {
	return EtcdConfig{
		Prefix:      "/nexus/master-election",
		SessionTTL:  10 * time.Second,
		DialTimeout: 5 * time.Second,
	}
}

// EtcdWatcher campaigns for master leadership under an etcd session lease,
// grounded on hanfei1991-microcosm's EtcdElection.
type EtcdWatcher struct {
	selfID string
	cfg    EtcdConfig
	log    *logrus.Entry

	mu      sync.Mutex
	client  *clientv3.Client
	session *concurrency.Session
	rl      *rate.Limiter
	closed  bool
}

// NewEtcdWatcher dials the etcd cluster at cfg.Endpoints; the dial itself
// does not campaign, Observe does.
func NewEtcdWatcher(selfID string, cfg EtcdConfig, log *logrus.Entry) (*EtcdWatcher, error) {
	cl, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("leader: dialing etcd: %w", err)
	}
	return &EtcdWatcher{
		selfID: selfID,
		cfg:    cfg,
		log:    log,
		client: cl,
		rl:     rate.NewLimiter(rate.Every(time.Second), 1),
	}, nil
}

// Observe campaigns in a background goroutine and emits an Event each time
// this process wins the election. A single EtcdWatcher only ever reports
// its own wins, never another process's, since spec.md's
// operation is scoped per-process; cluster-wide epoch monotonicity is
// enforced by etcd's revision numbers regardless of which process is
// watching.
func (w *EtcdWatcher) Observe(ctx context.Context) (<-chan Event, error) {
	events := make(chan Event, 1)
	go w.run(ctx, events)
	return events, nil
}

func (w *EtcdWatcher) run(ctx context.Context, events chan<- Event) {
	defer close(events)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sess, err := concurrency.NewSession(w.client,
			concurrency.WithTTL(int(w.cfg.SessionTTL.Seconds())),
			concurrency.WithContext(ctx))
		if err != nil {
			w.log.WithError(err).Warn("leader: creating etcd session failed")
			if !w.sleep(ctx) {
				return
			}
			continue
		}
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			sess.Close()
			return
		}
		w.session = sess
		w.mu.Unlock()

		election := concurrency.NewElection(sess, w.cfg.Prefix)
		if err := w.rl.Wait(ctx); err != nil {
			sess.Close()
			return
		}
		if err := election.Campaign(ctx, w.selfID); err != nil {
			w.log.WithError(err).Warn("leader: campaign failed, retrying")
			sess.Close()
			if !w.sleep(ctx) {
				return
			}
			continue
		}

		select {
		case events <- Event{EpochID: election.Rev(), Leader: w.selfID}:
		case <-ctx.Done():
			sess.Close()
			return
		}

		// Hold leadership until the session expires or ctx is canceled,
		// then loop around and recampaign.
		select {
		case <-sess.Done():
		case <-ctx.Done():
			sess.Close()
			return
		}
		sess.Close()
	}
}

func (w *EtcdWatcher) sleep(ctx context.Context) bool {
	select {
	case <-time.After(time.Second):
		return true
	case <-ctx.Done():
		return false
	}
}

// Close releases the held session and the etcd client connection.
func (w *EtcdWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.session != nil {
		_ = w.session.Close()
	}
	return w.client.Close()
}
