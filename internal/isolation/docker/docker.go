// Package docker is an isolation backend that runs each executor inside its
// own Docker container via the Docker Engine API, grounded on the teacher's
// agent/pkg/docker.Client wrapper (CreateContainer/RunContainer/
// SignalContainer/RemoveContainer), trimmed to the single-image,
// no-checks-config case since spec.md's Non-goals exclude readiness checks
// and image-pull progress reporting.
package docker

import (
	"context"
	"fmt"
	"sync"

	dockertypes "github.com/docker/docker/api/types"
	dcontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/sirupsen/logrus"

	"github.com/nexus-sched/nexus/internal/isolation"
	"github.com/nexus-sched/nexus/pkg/resources"
)

const labelFramework = "nexus.framework.id"

type entry struct {
	containerID string
	frameworkID string
}

// Module launches each executor as a Docker container named by its image
// (FrameworkInfo.ExecutorURI), using the daemon reachable via cl.
type Module struct {
	cl  *client.Client
	log *logrus.Entry

	mu    sync.Mutex
	live  map[isolation.Handle]*entry
	exits chan isolation.Exited
}

// New wraps an already-configured Docker client.
func New(cl *client.Client, log *logrus.Entry) *Module {
	return &Module{
		cl:    cl,
		log:   log,
		live:  make(map[isolation.Handle]*entry),
		exits: make(chan isolation.Exited, 64),
	}
}

// LaunchExecutor implements isolation.Module: it pulls nothing (the image is
// assumed present or pullable by the daemon on create), creates a container
// running framework.ExecutorURI as image, starts it, and watches for exit in
// the background.
func (m *Module) LaunchExecutor(
	ctx context.Context, framework isolation.FrameworkInfo,
) (isolation.Handle, error) {
	config := &dcontainer.Config{
		Image:        framework.ExecutorURI,
		Labels:       map[string]string{labelFramework: framework.FrameworkID},
		ExposedPorts: nat.PortSet{},
		Env:          []string{"NEXUS_FRAMEWORK_ID=" + framework.FrameworkID, "NEXUS_EXECUTOR_ENDPOINT=" + framework.ExecutorEndpoint},
	}
	if len(framework.ExecutorData) > 0 {
		config.Env = append(config.Env, "NEXUS_EXECUTOR_DATA="+string(framework.ExecutorData))
	}
	// NetworkMode host lets the container dial ExecutorEndpoint, a loopback
	// address on the slave's own host network namespace; spec.md's Non-goals
	// exclude an overlay network between slave and executor.
	hostConfig := &dcontainer.HostConfig{NetworkMode: "host", PublishAllPorts: true, PortBindings: nat.PortMap{}}
	created, err := m.cl.ContainerCreate(ctx, config, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("docker: creating container: %w", err)
	}
	for _, w := range created.Warnings {
		m.log.Warnf("docker: warning creating container: %s", w)
	}

	waitCh, errCh := m.cl.ContainerWait(context.Background(), created.ID, dcontainer.WaitConditionNextExit)
	if err := m.cl.ContainerStart(ctx, created.ID, dockertypes.ContainerStartOptions{}); err != nil {
		_ = m.cl.ContainerRemove(context.Background(), created.ID, dockertypes.ContainerRemoveOptions{Force: true})
		return "", fmt.Errorf("docker: starting container: %w", err)
	}

	handle := isolation.Handle(created.ID)
	m.mu.Lock()
	m.live[handle] = &entry{containerID: created.ID, frameworkID: framework.FrameworkID}
	m.mu.Unlock()

	go m.wait(handle, framework.FrameworkID, waitCh, errCh)
	return handle, nil
}

func (m *Module) wait(
	handle isolation.Handle,
	frameworkID string,
	waitCh <-chan dcontainer.WaitResponse,
	errCh <-chan error,
) {
	status := isolation.ExitStatus{}
	select {
	case body := <-waitCh:
		status.Code = int(body.StatusCode)
		if body.Error != nil {
			status.Message = body.Error.Message
		}
	case err := <-errCh:
		status.Code = -1
		status.Message = err.Error()
	}

	m.mu.Lock()
	delete(m.live, handle)
	m.mu.Unlock()

	_ = m.cl.ContainerRemove(context.Background(), string(handle), dockertypes.ContainerRemoveOptions{Force: true})
	m.exits <- isolation.Exited{FrameworkID: frameworkID, Handle: handle, Status: status}
}

// KillExecutor implements isolation.Module by sending SIGKILL to the
// container; the Exited event follows from the background waiter.
func (m *Module) KillExecutor(ctx context.Context, handle isolation.Handle) error {
	m.mu.Lock()
	_, ok := m.live[handle]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("docker: unknown handle %s", handle)
	}
	return m.cl.ContainerKill(ctx, string(handle), "SIGKILL")
}

// ResourcesChanged updates the container's CPU/memory limits via
// ContainerUpdate, translating the generic resources.Resources vector into
// Docker's cpu/mem units. Kinds it does not recognize are ignored.
func (m *Module) ResourcesChanged(
	ctx context.Context, handle isolation.Handle, newResources resources.Resources,
) error {
	update := dcontainer.UpdateConfig{}
	if mem, ok := newResources["mem"]; ok {
		update.Memory = int64(mem) * 1024 * 1024
	}
	if cpus, ok := newResources["cpu"]; ok {
		update.NanoCPUs = int64(cpus * 1e9)
	}
	_, err := m.cl.ContainerUpdate(ctx, string(handle), dcontainer.UpdateConfig{Resources: dcontainer.Resources{
		Memory:   update.Memory,
		NanoCPUs: update.NanoCPUs,
	}})
	if err != nil {
		return fmt.Errorf("docker: updating resources: %w", err)
	}
	return nil
}

// Exits implements isolation.Module.
func (m *Module) Exits() <-chan isolation.Exited { return m.exits }
