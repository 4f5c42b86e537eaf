package supervisor_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CheapNud/shotcutrenderqueue/internal/supervisor"
)

func TestSupervisor_Run_CapturesStderrLines(t *testing.T) {
	sup := supervisor.New(2 * time.Second)

	var mu sync.Mutex
	var lines []string
	report, err := sup.Run(context.Background(), supervisor.ExecSpec{
		Path: "/bin/sh",
		Args: []string{"-c", "echo 'Current Frame: 10, percentage: 33' 1>&2; echo 'Current Frame: 20, percentage: 66' 1>&2"},
		OnStderrLine: func(line string) {
			mu.Lock()
			defer mu.Unlock()
			lines = append(lines, line)
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, report.Code)
	require.Len(t, lines, 2)
	assert.True(t, strings.Contains(lines[0], "percentage: 33"))
	assert.True(t, strings.Contains(lines[1], "percentage: 66"))
}

func TestSupervisor_Run_NonZeroExitIsNotAnError(t *testing.T) {
	sup := supervisor.New(2 * time.Second)

	report, err := sup.Run(context.Background(), supervisor.ExecSpec{
		Path: "/bin/sh",
		Args: []string{"-c", "exit 7"},
	})

	require.NoError(t, err)
	assert.Equal(t, 7, report.Code)
}

func TestSupervisor_Run_MissingExecutableReturnsErrNotFound(t *testing.T) {
	sup := supervisor.New(2 * time.Second)

	_, err := sup.Run(context.Background(), supervisor.ExecSpec{Path: "definitely-not-a-real-binary"})

	require.True(t, errors.Is(err, supervisor.ErrNotFound))
}

func TestSupervisor_Run_CancelTerminatesProcess(t *testing.T) {
	sup := supervisor.New(500 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	done := make(chan struct{})
	var runErr error

	go func() {
		_, runErr = sup.Run(ctx, supervisor.ExecSpec{
			Path: "/bin/sh",
			Args: []string{"-c", "echo started 1>&2; sleep 30"},
			OnStderrLine: func(line string) {
				if strings.Contains(line, "started") {
					close(started)
				}
			},
		})
		close(done)
	}()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("process never reported started")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not return after cancel within grace window")
	}

	require.True(t, errors.Is(runErr, supervisor.ErrCancelled))
}

func TestSupervisor_RunPiped_WiresStdoutToStdin(t *testing.T) {
	sup := supervisor.New(2 * time.Second)

	report, err := sup.RunPiped(context.Background(),
		supervisor.ExecSpec{Path: "/bin/sh", Args: []string{"-c", "printf 'hello-piped'"}},
		supervisor.ExecSpec{Path: "/bin/sh", Args: []string{"-c", "cat > /dev/null"}},
	)

	require.NoError(t, err)
	assert.Equal(t, 0, report.Code)
}
