package execution

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
)

// DockerConfig configures throwaway runtime containers
type DockerConfig struct {
	Host          string
	Image         string
	MemoryLimitMB int
	PidsLimit     int64
	PullImage     bool
}

// DockerSandbox runs each program in a fresh, network-less container
// reading the program from stdin.
type DockerSandbox struct {
	cli    *client.Client
	config DockerConfig
}

// NewDockerSandbox connects to the Docker daemon
func NewDockerSandbox(cfg DockerConfig) (*DockerSandbox, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if cfg.PidsLimit <= 0 {
		cfg.PidsLimit = 64
	}
	if cfg.MemoryLimitMB <= 0 {
		cfg.MemoryLimitMB = 256
	}

	return &DockerSandbox{cli: cli, config: cfg}, nil
}

// EnsureImage pulls the runtime image if it is not present locally
func (s *DockerSandbox) EnsureImage(ctx context.Context) error {
	if _, _, err := s.cli.ImageInspectWithRaw(ctx, s.config.Image); err == nil {
		return nil
	}
	if !s.config.PullImage {
		return fmt.Errorf("image %s not found locally", s.config.Image)
	}

	slog.Info("pulling runtime image", "image", s.config.Image)
	out, err := s.cli.ImagePull(ctx, s.config.Image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", s.config.Image, err)
	}
	defer out.Close()

	// The pull only completes once the progress stream is drained
	if _, err := io.Copy(io.Discard, out); err != nil {
		return fmt.Errorf("failed to read pull output: %w", err)
	}

	slog.Info("runtime image pulled", "image", s.config.Image)
	return nil
}

// Close releases the Docker client
func (s *DockerSandbox) Close() error {
	return s.cli.Close()
}

// Execute runs req.Source with the image's interpreter. The container is
// always removed, including on timeout.
func (s *DockerSandbox) Execute(ctx context.Context, req Request) (*Response, error) {
	memory := int64(s.config.MemoryLimitMB) * 1024 * 1024
	if req.MemoryLimitMB > 0 {
		memory = int64(req.MemoryLimitMB) * 1024 * 1024
	}
	pids := s.config.PidsLimit

	resp, err := s.cli.ContainerCreate(ctx, &container.Config{
		Image:           s.config.Image,
		Cmd:             interpreterCmd(req.Language),
		OpenStdin:       true,
		StdinOnce:       true,
		AttachStdin:     true,
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: true,
		User:            "nobody",
		WorkingDir:      "/tmp",
		Labels: map[string]string{
			"practice-engine.run": uuid.New().String(),
		},
	}, &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:     memory,
			MemorySwap: memory,
			CPUQuota:   100000,
			PidsLimit:  &pids,
		},
		SecurityOpt:    []string{"no-new-privileges"},
		CapDrop:        []string{"ALL"},
		ReadonlyRootfs: true,
		Tmpfs: map[string]string{
			"/tmp": "rw,noexec,nosuid,size=16m,mode=1777",
		},
	}, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		if err := s.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true}); err != nil {
			slog.Warn("failed to remove container", "container_id", resp.ID, "error", err)
		}
	}()

	attach, err := s.cli.ContainerAttach(ctx, resp.ID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to container: %w", err)
	}
	defer attach.Close()

	if err := s.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	if _, err := io.Copy(attach.Conn, strings.NewReader(req.Source)); err != nil {
		return nil, fmt.Errorf("failed to write program: %w", err)
	}
	if err := attach.CloseWrite(); err != nil {
		return nil, fmt.Errorf("failed to close program stream: %w", err)
	}

	var stdout, stderr bytes.Buffer
	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		copied <- err
	}()

	waitCh, errCh := s.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)

	var exitCode int
	select {
	case status := <-waitCh:
		if status.Error != nil {
			return nil, fmt.Errorf("container wait failed: %s", status.Error.Message)
		}
		exitCode = int(status.StatusCode)
	case err := <-errCh:
		return nil, fmt.Errorf("failed to wait for container: %w", err)
	case <-ctx.Done():
		return nil, fmt.Errorf("execution timed out: %w", ctx.Err())
	}

	select {
	case err := <-copied:
		if err != nil {
			return nil, fmt.Errorf("failed to read container output: %w", err)
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("execution timed out: %w", ctx.Err())
	}

	return &Response{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

func interpreterCmd(language string) []string {
	switch language {
	case "javascript", "js", "node":
		return []string{"node", "-"}
	default:
		return []string{language, "-"}
	}
}
