package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"thumbsmith/internal/batch"
	"thumbsmith/internal/history"
	"thumbsmith/internal/media"
	"thumbsmith/internal/startup"
)

func writeTestJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: exitOK},
		{name: "config error", err: &startup.ConfigError{Message: "Width must be a number"}, want: exitConfig},
		{name: "scan error", err: &media.ScanError{Dir: "/x", Err: os.ErrNotExist}, want: exitConfig},
		{name: "partial failure", err: &batch.BatchError{Total: 2, Failures: []*batch.JobError{{Filename: "a", Err: errors.New("bad")}}}, want: exitPartial},
		{name: "interrupted", err: context.Canceled, want: exitInterrupted},
		{name: "wrapped interruption", err: fmt.Errorf("batch: %w", context.Canceled), want: exitInterrupted},
		{name: "unknown flag", err: errors.New("unknown flag: --nope"), want: exitConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestExecuteConfigErrors(t *testing.T) {
	src := t.TempDir()

	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{name: "no arguments", args: nil, wantMsg: startup.Usage},
		{name: "bad width", args: []string{"abc", "100", src, t.TempDir()}, wantMsg: "Width must be a number"},
		{name: "portrait", args: []string{"100", "200", src, t.TempDir()}, wantMsg: "Width must be greater than or equal to height."},
		{name: "same dirs", args: []string{"150", "100", src, src}, wantMsg: "Source dir and dest dir must be different."},
		{name: "unknown flag", args: []string{"--nope", "150", "100", src, t.TempDir()}, wantMsg: "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := execute(tt.args, &stdout, &stderr); code != exitConfig {
				t.Errorf("execute() = %d, want %d", code, exitConfig)
			}
			if !strings.Contains(stderr.String(), tt.wantMsg) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.wantMsg)
			}
			if stdout.Len() != 0 {
				t.Errorf("stdout = %q, want empty", stdout.String())
			}
		})
	}
}

func TestExecuteEndToEnd(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeTestJPEG(t, filepath.Join(src, "one.jpg"), 400, 300)
	writeTestJPEG(t, filepath.Join(src, "two.jpeg"), 300, 400)
	if err := os.WriteFile(filepath.Join(src, "notes.txt"), []byte("skip me"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := execute([]string{"--workers=2", "150", "100", src, dst}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("execute() = %d, want %d; stderr:\n%s", code, exitOK, stderr.String())
	}

	lines := strings.Fields(stdout.String())
	sort.Strings(lines)
	if strings.Join(lines, ",") != "one.jpg,two.jpeg" {
		t.Errorf("stdout = %q, want the two processed file names", stdout.String())
	}

	for _, name := range []string{"one.jpg", "two.jpeg"} {
		f, err := os.Open(filepath.Join(dst, name))
		if err != nil {
			t.Fatalf("thumbnail %s missing: %v", name, err)
		}
		cfg, _, err := image.DecodeConfig(f)
		f.Close()
		if err != nil {
			t.Fatalf("DecodeConfig(%s) error = %v", name, err)
		}
		if cfg.Width != 150 || cfg.Height != 100 {
			t.Errorf("%s is %dx%d, want 150x100", name, cfg.Width, cfg.Height)
		}
	}
}

func TestExecutePartialFailureWithHistory(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	writeTestJPEG(t, filepath.Join(src, "good.jpg"), 320, 240)
	if err := os.WriteFile(filepath.Join(src, "bad.jpg"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := execute([]string{"--history", dbPath, "200", "100", src, dst}, &stdout, &stderr)
	if code != exitPartial {
		t.Fatalf("execute() = %d, want %d; stderr:\n%s", code, exitPartial, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != "good.jpg" {
		t.Errorf("stdout = %q, want good.jpg only", stdout.String())
	}
	if !strings.Contains(stderr.String(), "bad.jpg") {
		t.Errorf("stderr does not mention the failed file:\n%s", stderr.String())
	}

	store, err := history.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("history.Open() error = %v", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns() = %v, %v", runs, err)
	}
	if runs[0].Status != "partial" || runs[0].Processed != 1 || runs[0].Failed != 1 {
		t.Errorf("recorded run = %+v", runs[0])
	}
}
