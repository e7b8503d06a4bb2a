package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	multierror "github.com/hashicorp/go-multierror"
	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/soheilhy/cmux"
	"github.com/spf13/cobra"

	nexusconfig "github.com/nexus-sched/nexus/internal/config"
	"github.com/nexus-sched/nexus/internal/leader"
	nexuslog "github.com/nexus-sched/nexus/internal/log"
	"github.com/nexus-sched/nexus/internal/master"
	"github.com/nexus-sched/nexus/internal/store"
	"github.com/nexus-sched/nexus/pkg/agent"
)

var configFile string

var rootCmd = &cobra.Command{
	Use: "nexus-master",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoot(cmd)
	},
}

func init() {
	defaults := nexusconfig.Default()
	flags := rootCmd.Flags()
	flags.String("allocator", defaults.Allocator, "allocator policy (simple|priority)")
	flags.Int("port", defaults.Port, "port to accept framework and slave connections on")
	flags.String("fault-tolerant", defaults.FaultTolerant, "comma-separated etcd endpoints; empty disables fault tolerance")
	flags.String("work-dir", defaults.WorkDir, "directory for persisted master state")
	flags.Bool("quiet", defaults.Quiet, "suppress info-level logging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML/JSON config file")
}

// configError marks an error that should exit 1 rather than 2, per
// spec.md section 6's 0/1/2 exit code convention.
type configError struct{ err error }

func (e configError) Error() string { return e.err.Error() }
func (e configError) Unwrap() error  { return e.err }

func exitCodeFor(err error) int {
	var ce configError
	if errors.As(err, &ce) {
		return 1
	}
	return 2
}

func runRoot(cmd *cobra.Command) error {
	cfg, err := nexusconfig.Load(cmd.Flags(), configFile)
	if err != nil {
		return configError{err}
	}
	if err := nexuslog.Setup(nexuslog.Config{Level: "info", Quiet: cfg.Quiet}); err != nil {
		return configError{err}
	}
	logEntry := log.NewEntry(log.StandardLogger())
	logEntry.WithField("config", fmt.Sprintf("%+v", cfg)).Info("nexus-master: starting")

	var db *store.Store
	if cfg.WorkDir != "" {
		if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
			return configError{fmt.Errorf("creating work-dir: %w", err)}
		}
		db, err = store.Open(filepath.Join(cfg.WorkDir, "master.db"))
		if err != nil {
			return configError{pkgerrors.Wrap(err, "opening persisted state")}
		}
		defer db.Close()
	}

	selfID := uuid.NewString()
	watcher, err := newWatcher(cfg, selfID, logEntry)
	if err != nil {
		return configError{err}
	}
	defer watcher.Close()

	system := agent.NewSystem("nexus-master")
	m, err := master.New(master.Config{AllocatorPolicy: cfg.Allocator, Store: db})
	if err != nil {
		return configError{err}
	}
	ref := system.ActorOf("master", m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := watcher.Observe(ctx)
	if err != nil {
		return fmt.Errorf("starting leader watcher: %w", err)
	}
	go func() {
		for ev := range events {
			ref.Tell(master.LeaderChanged{EpochID: ev.EpochID, Leader: ev.Leader, SelfID: selfID})
		}
	}()

	baseListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", cfg.Port, err)
	}
	defer baseListener.Close()

	mux := cmux.New(baseListener)
	grpcListener := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	wireListener := mux.Match(cmux.Any())

	grpcSrv := master.NewGRPCServer(ref, logEntry)
	grpcServer := master.NewServer(grpcSrv)
	wireServer := master.NewWireServer(ref, logEntry)

	errs := make(chan error, 3)
	go func() { errs <- grpcServer.Serve(grpcListener) }()
	go func() { errs <- wireServer.Serve(wireListener) }()
	go func() { errs <- mux.Serve() }()

	logEntry.WithField("port", cfg.Port).Info("nexus-master: accepting connections")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		return fmt.Errorf("server exited: %w", err)
	case <-sig:
		logEntry.Info("nexus-master: shutting down")
		grpcServer.GracefulStop()
		cancel()

		var result *multierror.Error
		if err := ref.StopAndAwaitTermination(); err != nil {
			result = multierror.Append(result, fmt.Errorf("stopping master actor: %w", err))
		}
		if err := watcher.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing leader watcher: %w", err))
		}
		return result.ErrorOrNil()
	}
}

func newWatcher(cfg nexusconfig.Config, selfID string, log *log.Entry) (leader.Watcher, error) {
	if cfg.FaultTolerant == "" {
		return leader.NewStaticWatcher(selfID), nil
	}
	endpoints := strings.Split(cfg.FaultTolerant, ",")
	return leader.NewEtcdWatcher(selfID, leader.EtcdConfig{
		Endpoints:   endpoints,
		Prefix:      leader.DefaultEtcdConfig().Prefix,
		SessionTTL:  leader.DefaultEtcdConfig().SessionTTL,
		DialTimeout: leader.DefaultEtcdConfig().DialTimeout,
	}, log)
}
