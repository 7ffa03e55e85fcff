package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/app-installer/internal/domain"
)

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseFlags([]string{"--id", "foo", "--name", " Foo ", "--developer", "acme", "--dry-run", "-q"}, &stderr)
	require.NoError(t, err)

	assert.Equal(t, "foo", opts.ID)
	assert.Equal(t, "Foo", opts.Name)
	assert.Equal(t, "acme", opts.Developer)
	assert.True(t, opts.DryRun)
	assert.True(t, opts.Quiet)
}

func TestParseFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing id", []string{"--name", "Foo"}},
		{"bad id", []string{"--id", "../x", "--name", "Foo"}},
		{"missing name", []string{"--id", "foo"}},
		{"unknown flag", []string{"--id", "foo", "--name", "Foo", "--nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			_, err := parseFlags(tt.args, &stderr)
			assert.Error(t, err)
		})
	}
}

func TestRun_UsageErrorExitCode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"--name", "Foo"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "error:")
}

func TestPrinter(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out, false)

	p.print(domain.ProgressEvent{Stage: domain.StageFetchingRelease, Message: "Fetching release information..."})
	p.print(domain.ProgressEvent{Stage: domain.StageDownloading, Message: "Downloading foo.dmg (1.0 MB)..."})
	p.print(domain.ProgressEvent{Stage: domain.StageDownloading, Progress: 0.01, Message: "Downloading... 1%"})
	p.print(domain.ProgressEvent{Stage: domain.StageDownloading, Progress: 0.02, Message: "Downloading... 2%"})
	p.print(domain.ProgressEvent{Stage: domain.StageDownloading, Progress: 0.5, Message: "Downloading... 50%"})
	p.print(domain.ProgressEvent{Stage: domain.StageCompleted, Progress: 1, Message: "Installation complete!"})

	assert.Equal(t,
		"[fetching_release] Fetching release information...\n"+
			"[downloading] Downloading foo.dmg (1.0 MB)...\n"+
			"[downloading] Downloading... 1%\n"+
			"[downloading] Downloading... 50%\n"+
			"[completed] Installation complete!\n",
		out.String())

	select {
	case <-p.finished:
	default:
		t.Fatal("expected finished to be closed after the terminal event")
	}
}

func TestPrinter_Quiet(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out, true)
	p.print(domain.ProgressEvent{Stage: domain.StageInstalling, Message: "Installing..."})
	assert.Empty(t, out.String())

	select {
	case <-p.finished:
		t.Fatal("finished closed before a terminal event")
	default:
	}

	p.print(domain.ProgressEvent{Stage: domain.StageFailed, Message: "Installation failed: boom"})
	p.print(domain.ProgressEvent{Stage: domain.StageFailed, Message: "Installation failed: boom"})
	assert.Empty(t, out.String())
	<-p.finished
}

func TestSizeLabel(t *testing.T) {
	assert.Equal(t, "unknown size", sizeLabel(0))
	assert.Equal(t, "205 kB", sizeLabel(205*1000))
}
