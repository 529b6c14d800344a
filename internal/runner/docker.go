package runner

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/felixgeelhaar/codedojo/internal/domain"
)

const workDir = "/workspace"

// DockerConfig configures the container backend.
type DockerConfig struct {
	MemoryMB   int
	CPULimit   float64
	NetworkOff bool
	Timeout    time.Duration
	Runtimes   Runtimes
	Logger     *slog.Logger
}

// DefaultDockerConfig returns limits suitable for small practice programs.
func DefaultDockerConfig() DockerConfig {
	return DockerConfig{
		MemoryMB:   256,
		CPULimit:   0.5,
		NetworkOff: true,
		Timeout:    15 * time.Second,
		Runtimes:   DefaultRuntimes(),
	}
}

// DockerExecutor runs each program in a fresh, network-less container.
type DockerExecutor struct {
	client *client.Client
	config DockerConfig
	logger *slog.Logger
}

// NewDockerExecutor connects to the local Docker daemon.
func NewDockerExecutor(cfg DockerConfig) (*DockerExecutor, error) {
	if cfg.Runtimes == nil {
		cfg.Runtimes = DefaultRuntimes()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}

	return &DockerExecutor{client: cli, config: cfg, logger: cfg.Logger}, nil
}

// Execute copies the program into a new container, runs it and removes the
// container.
func (d *DockerExecutor) Execute(ctx context.Context, req domain.ExecutionRequest) (*domain.ExecutionResult, error) {
	rt, err := d.config.Runtimes.Lookup(req.Language)
	if err != nil {
		return nil, err
	}

	containerID, err := d.createContainer(ctx, rt, req.Language)
	if err != nil {
		return nil, err
	}
	defer func() {
		// The request context may already be done.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := d.destroyContainer(cleanupCtx, containerID); err != nil {
			d.logger.Warn("remove container", "container", shortID(containerID), "error", err)
		}
	}()

	if err := d.copyFiles(ctx, containerID, map[string]string{rt.FileName: req.SourceCode}); err != nil {
		return nil, fmt.Errorf("copy source: %w", err)
	}

	stdout, stderr, elapsed, err := d.exec(ctx, containerID, rt.Command)
	if err != nil {
		return nil, err
	}

	return &domain.ExecutionResult{
		Output:         combineOutput(stdout, stderr),
		CPUTimeSeconds: roundSeconds(elapsed),
		MemoryKb:       d.memoryKb(ctx, containerID),
	}, nil
}

// Close closes the Docker client.
func (d *DockerExecutor) Close() error {
	return d.client.Close()
}

func (d *DockerExecutor) createContainer(ctx context.Context, rt Runtime, lang domain.LanguageID) (string, error) {
	if err := d.ensureImage(ctx, rt.Image); err != nil {
		return "", fmt.Errorf("ensure image: %w", err)
	}

	containerCfg := &container.Config{
		Image:           rt.Image,
		Cmd:             []string{"sh", "-c", "while true; do sleep 3600; done"},
		WorkingDir:      workDir,
		NetworkDisabled: d.config.NetworkOff,
		Labels: map[string]string{
			"codedojo.run":  "true",
			"codedojo.lang": string(lang),
		},
	}
	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:   int64(d.config.MemoryMB) * 1024 * 1024,
			NanoCPUs: int64(d.config.CPULimit * 1e9),
		},
	}

	resp, err := d.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	if err := d.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = d.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("start container: %w", err)
	}
	return resp.ID, nil
}

func (d *DockerExecutor) copyFiles(ctx context.Context, containerID string, files map[string]string) error {
	buf, err := tarFiles(files)
	if err != nil {
		return err
	}
	return d.client.CopyToContainer(ctx, containerID, workDir, buf, container.CopyToContainerOptions{})
}

func (d *DockerExecutor) exec(ctx context.Context, containerID string, cmd []string) (string, string, time.Duration, error) {
	execCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	execResp, err := d.client.ContainerExecCreate(execCtx, containerID, container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   workDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", "", 0, fmt.Errorf("create exec: %w", err)
	}

	start := time.Now()
	attachResp, err := d.client.ContainerExecAttach(execCtx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", "", 0, fmt.Errorf("attach exec: %w", err)
	}
	defer attachResp.Close()

	var outBuf bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(&outBuf, attachResp.Reader)
		done <- err
	}()

	select {
	case <-execCtx.Done():
		attachResp.Close()
		<-done
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", "", 0, ErrTimeout
		}
		return "", "", 0, ctx.Err()
	case <-done:
	}
	elapsed := time.Since(start)

	stdout, stderr := demuxOutput(outBuf.Bytes())
	return stdout, stderr, elapsed, nil
}

func (d *DockerExecutor) memoryKb(ctx context.Context, containerID string) float64 {
	stats, err := d.client.ContainerStatsOneShot(ctx, containerID)
	if err != nil {
		return 0
	}
	defer stats.Body.Close()

	var s container.StatsResponse
	if err := json.NewDecoder(stats.Body).Decode(&s); err != nil {
		return 0
	}
	usage := s.MemoryStats.MaxUsage
	if usage == 0 {
		usage = s.MemoryStats.Usage
	}
	return float64(usage / 1024)
}

func (d *DockerExecutor) destroyContainer(ctx context.Context, containerID string) error {
	timeout := 2
	_ = d.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout})
	return d.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}

func (d *DockerExecutor) ensureImage(ctx context.Context, img string) error {
	if _, err := d.client.ImageInspect(ctx, img); err == nil {
		return nil
	}

	d.logger.Info("pulling image", "image", img)
	reader, err := d.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

func tarFiles(files map[string]string) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		header := &tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, fmt.Errorf("write tar header: %w", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return nil, fmt.Errorf("write tar content: %w", err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}
	return &buf, nil
}

// demuxOutput separates Docker multiplexed stdout/stderr streams.
// Each frame has an 8-byte header: [type][0][0][0][size big-endian uint32],
// type 1 is stdout and 2 is stderr.
func demuxOutput(data []byte) (stdout, stderr string) {
	var outBuf, errBuf strings.Builder
	raw := data

	for len(data) >= 8 {
		streamType := data[0]
		if streamType > 2 || data[1] != 0 || data[2] != 0 || data[3] != 0 {
			// Not a multiplexed stream (TTY mode).
			return string(raw), ""
		}
		size := int(data[4])<<24 | int(data[5])<<16 | int(data[6])<<8 | int(data[7])
		data = data[8:]
		if size > len(data) {
			size = len(data)
		}

		chunk := string(data[:size])
		data = data[size:]

		switch streamType {
		case 1:
			outBuf.WriteString(chunk)
		case 2:
			errBuf.WriteString(chunk)
		}
	}

	if outBuf.Len() == 0 && errBuf.Len() == 0 && len(data) > 0 {
		return string(data), ""
	}
	return outBuf.String(), errBuf.String()
}

// combineOutput joins the streams the way hosted runners report them:
// stdout first, then stderr.
func combineOutput(stdout, stderr string) string {
	if stderr == "" {
		return stdout
	}
	if stdout == "" {
		return stderr
	}
	if !strings.HasSuffix(stdout, "\n") {
		stdout += "\n"
	}
	return stdout + stderr
}

func roundSeconds(d time.Duration) float64 {
	ms := d.Milliseconds()
	return float64(ms) / 1000
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
