package assemble

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boardforge/board-imager/internal/artifact"
	"github.com/boardforge/board-imager/internal/config"
	"github.com/boardforge/board-imager/internal/firmware"
	"github.com/boardforge/board-imager/internal/loopdev"
	"github.com/boardforge/board-imager/internal/mountpoint"
	"github.com/boardforge/board-imager/internal/platform"
	"github.com/boardforge/board-imager/internal/toolrun"
)

// fakeRunner records tool invocations instead of executing them. Failures
// and side effects are injected per tool name.
type fakeRunner struct {
	// calls holds every Run invocation as "name arg1 arg2 ...".
	calls []string
	// missing marks tool names LookPath rejects.
	missing map[string]bool
	// failOn maps tool names to injected Run errors.
	failOn map[string]error
	// onRun, when set, observes every successful Run for side effects.
	onRun func(name string, args []string)
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))

	if err := r.failOn[name]; err != nil {
		return err
	}

	if r.onRun != nil {
		r.onRun(name, args)
	}

	return nil
}

func (r *fakeRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return nil, r.Run(ctx, name, args...)
}

func (r *fakeRunner) LookPath(name string) (string, error) {
	if r.missing[name] {
		return "", fmt.Errorf("%s: executable file not found", name)
	}

	return "/usr/bin/" + name, nil
}

// called reports whether any recorded invocation starts with the tool name.
func (r *fakeRunner) called(tool string) bool {
	for _, call := range r.calls {
		if strings.HasPrefix(call, tool+" ") {
			return true
		}
	}

	return false
}

// fakeLoop is an attached loop device whose partition node is a plain file,
// so partition waiting succeeds without a kernel.
type fakeLoop struct {
	path     string
	partFile string
	events   *[]string
}

func (l *fakeLoop) Path() string { return l.path }

func (l *fakeLoop) PartPath(int) string { return l.partFile }

func (l *fakeLoop) Detach() error {
	*l.events = append(*l.events, "detach")
	return nil
}

// fakeLoopManager hands out fakeLoop handles and records attachments.
type fakeLoopManager struct {
	t      *testing.T
	events *[]string
}

func (m *fakeLoopManager) Attach(_ context.Context, image string, _ bool) (loopdev.Handle, error) {
	part := filepath.Join(m.t.TempDir(), "loop0p1")
	require.NoError(m.t, os.WriteFile(part, nil, 0o644))

	*m.events = append(*m.events, "attach "+filepath.Base(image))

	return &fakeLoop{path: "/dev/loop0", partFile: part, events: m.events}, nil
}

// fakeMounter hands out temp-dir mounts without touching the kernel.
type fakeMounter struct {
	t      *testing.T
	events *[]string
	target string
}

func (m *fakeMounter) Mount(_ context.Context, _, _ string) (mountpoint.Mount, error) {
	m.target = m.t.TempDir()
	*m.events = append(*m.events, "mount")

	return &fakeMount{target: m.target, events: m.events}, nil
}

type fakeMount struct {
	target string
	events *[]string
}

func (m *fakeMount) Target() string { return m.target }

func (m *fakeMount) Unmount() error {
	*m.events = append(*m.events, "unmount")
	return nil
}

// testAssembler wires an Assembler over the fakes, with a firmware cache
// that already looks cloned so the overlay takes the refresh path.
func testAssembler(t *testing.T, runner *fakeRunner, events *[]string) *Assembler {
	t.Helper()

	cfg := config.Default()
	cfg.SDImageSizeMB = 16
	cfg.RootImageSizeMB = 8
	cfg.FirmwareCacheDir = filepath.Join(t.TempDir(), "firmware")
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.FirmwareCacheDir, ".git"), 0o755))

	return &Assembler{
		Config: cfg,
		Runner: runner,
		Loops:  &fakeLoopManager{t: t, events: events},
		Mounts: &fakeMounter{t: t, events: events},
		Firmware: &firmware.Overlay{
			RepoURL:  cfg.FirmwareRepoURL,
			CacheDir: cfg.FirmwareCacheDir,
			Git:      toolrun.Git{R: runner, Tool: cfg.Tools.Git},
			Sync:     toolrun.Syncer{R: runner, Tool: cfg.Tools.Rsync},
		},
	}
}

// testArtifactSet lays out a minimal but complete rk3399 build directory
// and returns the matching artifact set.
func testArtifactSet(t *testing.T) *artifact.Set {
	t.Helper()

	dir := t.TempDir()

	kernel := filepath.Join(dir, "Image")
	dtb := filepath.Join(dir, "rk3399-rockpro64.dtb")
	loader := filepath.Join(dir, platform.ArtifactUBootRockchip)
	rootfs := filepath.Join(dir, "rootfs")

	require.NoError(t, os.WriteFile(kernel, []byte("kernel"), 0o644))
	require.NoError(t, os.WriteFile(dtb, []byte("dtb"), 0o644))
	require.NoError(t, os.MkdirAll(rootfs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rootfs, "etc-issue"), []byte("x"), 0o644))

	header := make([]byte, 64)
	copy(header[21:], "93KR")
	require.NoError(t, os.WriteFile(loader, header, 0o644))

	return &artifact.Set{
		Dir:         dir,
		Chip:        "rk3399",
		Board:       "rockpro64",
		KernelImage: kernel,
		DeviceTrees: []string{dtb},
		Bootloader:  map[string]string{platform.ArtifactUBootRockchip: loader},
		BootForm:    platform.BootCombined,
		RootfsDir:   rootfs,
	}
}

func testProfile(t *testing.T) *platform.Profile {
	t.Helper()

	profile, err := platform.Resolve("rk3399", platform.BootCombined)
	require.NoError(t, err)

	return profile
}
