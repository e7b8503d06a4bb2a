package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	dclient "github.com/docker/docker/client"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	nexusconfig "github.com/nexus-sched/nexus/internal/config"
	"github.com/nexus-sched/nexus/internal/isolation"
	"github.com/nexus-sched/nexus/internal/isolation/docker"
	"github.com/nexus-sched/nexus/internal/isolation/noop"
	"github.com/nexus-sched/nexus/internal/isolation/process"
	nexuslog "github.com/nexus-sched/nexus/internal/log"
	"github.com/nexus-sched/nexus/internal/slave"
	"github.com/nexus-sched/nexus/pkg/agent"
	"github.com/nexus-sched/nexus/pkg/resources"
)

var (
	configFile    string
	resourcesFlag string
	hostnameFlag  string
)

var rootCmd = &cobra.Command{
	Use: "nexus-slave",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoot(cmd)
	},
}

func init() {
	defaults := nexusconfig.Default()
	flags := rootCmd.Flags()
	flags.String("master-addr", defaults.MasterAddr, "master address to register with")
	flags.String("isolation", defaults.Isolation, "isolation backend (process|noop|docker)")
	flags.String("work-dir", defaults.WorkDir, "root directory for executor working directories")
	flags.Bool("quiet", defaults.Quiet, "suppress info-level logging")
	flags.StringVar(&resourcesFlag, "resources", "cpu=4,mem=1024", "comma-separated kind=quantity pairs advertised to the master")
	flags.StringVar(&hostnameFlag, "hostname", "", "hostname to advertise; defaults to os.Hostname()")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML/JSON config file")
}

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

// parseResources turns "cpu=4,mem=1024" into a resources.Resources vector;
// spec.md leaves the slave's command-line advertisement format unspecified,
// so this follows the same kind=quantity shape the allocator and wire
// messages already use internally.
func parseResources(s string) (resources.Resources, error) {
	out := resources.New()
	if s == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed resource pair %q", pair)
		}
		qty, err := strconv.ParseFloat(kv[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing quantity for %q: %w", kv[0], err)
		}
		out = out.Add(resources.New(kv[0], qty))
	}
	return out, nil
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

	total, err := parseResources(resourcesFlag)
	if err != nil {
		return configError{fmt.Errorf("parsing --resources: %w", err)}
	}

	hostname := hostnameFlag
	if hostname == "" {
		hostname, err = os.Hostname()
		if err != nil {
			return configError{fmt.Errorf("determining hostname: %w", err)}
		}
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return configError{fmt.Errorf("creating work-dir: %w", err)}
	}

	iso, err := newIsolation(cfg.Isolation, hostname, workDir, logEntry)
	if err != nil {
		return configError{err}
	}

	// The executor-facing listener binds an OS-assigned loopback port rather
	// than a configured one: executors only ever dial back into the slave
	// that launched them, so there is nothing for an operator to point at
	// this address externally (spec.md section 4.3's "executor registration").
	executorListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return configError{fmt.Errorf("binding executor listener: %w", err)}
	}

	logEntry.WithFields(log.Fields{
		"hostname": hostname, "resources": total, "isolation": cfg.Isolation, "master": cfg.MasterAddr,
		"executor-endpoint": executorListener.Addr().String(),
	}).Info("nexus-slave: starting")

	system := agent.NewSystem("nexus-slave")
	s := slave.New(slave.Config{
		Hostname: hostname, Total: total, WorkDir: workDir, Isolate: iso,
		ExecutorEndpoint: executorListener.Addr().String(),
	})
	ref := system.ActorOf("slave", s)

	executorServer := slave.NewExecutorServer(ref, logEntry)
	go func() {
		if err := executorServer.Serve(executorListener); err != nil {
			logEntry.WithError(err).Warn("nexus-slave: executor listener stopped")
		}
	}()

	client := slave.NewWireClient(ref, hostname, total, logEntry)
	if err := client.Connect(cfg.MasterAddr); err != nil {
		return fmt.Errorf("connecting to master %s: %w", cfg.MasterAddr, err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logEntry.Info("nexus-slave: shutting down")
	executorListener.Close()
	if err := ref.StopAndAwaitTermination(); err != nil {
		return fmt.Errorf("stopping slave actor: %w", err)
	}
	return nil
}

func newIsolation(kind, hostname, workDir string, log *log.Entry) (isolation.Module, error) {
	switch kind {
	case "process":
		return process.New(hostname, workDir, log), nil
	case "noop":
		return noop.New(false), nil
	case "docker":
		cl, err := dclient.NewClientWithOpts(dclient.FromEnv, dclient.WithAPIVersionNegotiation())
		if err != nil {
			return nil, fmt.Errorf("connecting to docker daemon: %w", err)
		}
		return docker.New(cl, log), nil
	default:
		return nil, fmt.Errorf("unknown isolation backend %q", kind)
	}
}
