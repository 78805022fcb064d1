package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/sldlx/internal/models"
	"github.com/desertthunder/sldlx/internal/shared"
	tu "github.com/desertthunder/sldlx/internal/testing"
	"github.com/desertthunder/sldlx/internal/worker"
)

// testEnv writes a config into a temp dir and returns its path.
func testEnv(t *testing.T, withCredentials bool) string {
	t.Helper()
	dir := t.TempDir()

	cfg := shared.DefaultConfig()
	cfg.Download.Path = filepath.Join(dir, "music")
	cfg.Database.Path = filepath.Join(dir, "history.db")
	cfg.Logging.Dir = filepath.Join(dir, "logs")
	cfg.Engine.PollIntervalMs = 10
	if withCredentials {
		cfg.Credentials.Soulseek.Username = "alice"
		cfg.Credentials.Soulseek.Password = "secret"
	}

	path := filepath.Join(dir, "config.toml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func fastFactory(plan worker.PlanFunc) worker.Factory {
	return worker.SimulatorFactory(worker.SimulatorOptions{
		Tracks: []models.Track{
			{ID: "t1", Artist: "Artist", Title: "One"},
			{ID: "t2", Artist: "Artist", Title: "Two"},
		},
		SearchDelay: time.Millisecond,
		Step:        time.Millisecond,
		Chunk:       4096,
		Plan:        plan,
	})
}

func downloadAll(track models.Track, attempt int) worker.Outcome {
	return worker.Outcome{
		State:  models.TrackDownloaded,
		Source: &models.Source{Peer: "peer", File: models.FileInfo{Extension: ".mp3", BitRate: 320, Size: 8192}},
	}
}

// run executes the CLI with args against a fresh runner and returns its output.
func run(t *testing.T, factory worker.Factory, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Logger:  shared.NewLogger(io.Discard),
		Output:  out,
		Factory: factory,
	})
	err := newApp(runner).Run(context.Background(), append([]string{"sldlx"}, args...))
	return out.String(), err
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.factory == nil {
				t.Error("expected default downloader factory")
			}
			if runner.clock == nil {
				t.Error("expected default clock")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writePlain("hello %s", "world"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "hello world" {
			t.Errorf("expected 'hello world', got %q", output.String())
		}

		failing := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		if err := failing.writePlain("test"); err == nil {
			t.Error("expected error from failing writer")
		}
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		want := map[string]bool{"setup": false, "download": false, "tui": false, "settings": false, "history": false}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			want[cmd.Name] = true
		}
		for name, found := range want {
			if !found {
				t.Errorf("expected %s command to be registered", name)
			}
		}
	})
}

func TestDownload(t *testing.T) {
	t.Run("runs to completion and records history", func(t *testing.T) {
		configPath := testEnv(t, true)
		reportPath := filepath.Join(t.TempDir(), "report.txt")

		out, err := run(t, fastFactory(downloadAll),
			"--config", configPath,
			"download", "--report", "text", "--report-path", reportPath,
			"https://open.spotify.com/playlist/abc")
		if err != nil {
			t.Fatalf("download failed: %v\n%s", err, out)
		}

		for _, want := range []string{"Done: 2/2 tracks downloaded", "Artist - One", "Artist - Two", "2/2 downloaded, 0 failed"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
		tu.AssertFileExists(t, reportPath)

		out, err = run(t, nil, "--config", configPath, "history", "list")
		if err != nil {
			t.Fatalf("history list failed: %v", err)
		}
		if !strings.Contains(out, "completed") || !strings.Contains(out, "2/2") {
			t.Errorf("expected recorded session in history:\n%s", out)
		}
	})

	t.Run("worker failures are reported per track", func(t *testing.T) {
		configPath := testEnv(t, true)
		plan := func(track models.Track, attempt int) worker.Outcome {
			if track.ID == "t2" {
				return worker.Outcome{State: models.TrackFailed, Reason: models.FailureNotFound}
			}
			return downloadAll(track, attempt)
		}

		out, err := run(t, fastFactory(plan), "--config", configPath, "download", "--no-history", "https://open.spotify.com/album/xyz")
		if err != nil {
			t.Fatalf("download failed: %v\n%s", err, out)
		}
		if !strings.Contains(out, "Done: 1/2 tracks downloaded") {
			t.Errorf("expected partial completion:\n%s", out)
		}
		if !strings.Contains(out, "Not found") {
			t.Errorf("expected failure label:\n%s", out)
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		configPath := testEnv(t, false)

		_, err := run(t, fastFactory(downloadAll), "--config", configPath, "download", "--no-history", "https://open.spotify.com/playlist/abc")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("unsupported input", func(t *testing.T) {
		configPath := testEnv(t, true)

		_, err := run(t, fastFactory(downloadAll), "--config", configPath, "download", "--no-history", "not a url")
		if !errors.Is(err, shared.ErrUnsupportedInput) {
			t.Errorf("expected ErrUnsupportedInput, got %v", err)
		}
	})

	t.Run("worker error fails the command", func(t *testing.T) {
		configPath := testEnv(t, true)
		mock := tu.NewMockDownloader()
		mock.RunFunc = func(ctx context.Context) error { return errors.New("login rejected") }

		_, err := run(t, mock.Factory(), "--config", configPath, "download", "--no-history", "https://open.spotify.com/playlist/abc")
		if err == nil || !strings.Contains(err.Error(), "login rejected") {
			t.Errorf("expected worker error, got %v", err)
		}
	})
}

func TestSettings(t *testing.T) {
	t.Run("set then show", func(t *testing.T) {
		configPath := testEnv(t, false)

		if _, err := run(t, nil, "--config", configPath, "settings", "set", "--username", "bob", "--password", "hunter2", "--format", "flac"); err != nil {
			t.Fatalf("settings set failed: %v", err)
		}

		cfg, err := shared.LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}
		if cfg.Credentials.Soulseek.Username != "bob" || cfg.Download.Format != "FLAC" {
			t.Errorf("settings not saved: %+v", cfg)
		}

		out, err := run(t, nil, "--config", configPath, "settings", "show")
		if err != nil {
			t.Fatalf("settings show failed: %v", err)
		}
		if !strings.Contains(out, "bob") {
			t.Errorf("expected username in output:\n%s", out)
		}
		if strings.Contains(out, "hunter2") {
			t.Errorf("password should be masked:\n%s", out)
		}
	})

	t.Run("invalid bitrate is rejected", func(t *testing.T) {
		configPath := testEnv(t, false)

		_, err := run(t, nil, "--config", configPath, "settings", "set", "--bitrate", "999")
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("nothing to set", func(t *testing.T) {
		configPath := testEnv(t, false)

		_, err := run(t, nil, "--config", configPath, "settings", "set")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestHistory(t *testing.T) {
	configPath := testEnv(t, true)

	if _, err := run(t, fastFactory(downloadAll), "--config", configPath, "download", "https://open.spotify.com/playlist/abc"); err != nil {
		t.Fatalf("download failed: %v", err)
	}

	t.Run("show by sequence", func(t *testing.T) {
		out, err := run(t, nil, "--config", configPath, "history", "show", "1")
		if err != nil {
			t.Fatalf("history show failed: %v", err)
		}
		if !strings.Contains(out, "https://open.spotify.com/playlist/abc") {
			t.Errorf("expected input in output:\n%s", out)
		}
	})

	t.Run("export markdown", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "report")
		if _, err := run(t, nil, "--config", configPath, "history", "export", "--format", "markdown", "--output", dir, "#1"); err != nil {
			t.Fatalf("history export failed: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "README.md"))
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := run(t, nil, "--config", configPath, "history", "show", "42")
		if !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if _, err := run(t, nil, "--config", configPath, "history", "delete", "1"); err != nil {
			t.Fatalf("history delete failed: %v", err)
		}
		out, err := run(t, nil, "--config", configPath, "history", "list")
		if err != nil {
			t.Fatalf("history list failed: %v", err)
		}
		if !strings.Contains(out, "No sessions recorded yet.") {
			t.Errorf("expected empty history:\n%s", out)
		}
	})
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "nested", "config.toml")

	out, err := run(t, nil, "--config", configPath, "setup")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.AssertFileExists(t, configPath)
	if !strings.Contains(out, "sldlx setup complete") {
		t.Errorf("expected completion banner:\n%s", out)
	}
}

func TestAwaitWorker(t *testing.T) {
	cfg := shared.DefaultConfig()
	cfg.Credentials.Soulseek.Username = "alice"
	cfg.Credentials.Soulseek.Password = "secret"
	cfg.Engine.GraceTimeoutMs = 5000

	exited := make(chan struct{})
	mock := tu.NewMockDownloader()
	mock.RunFunc = func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		close(exited)
		return ctx.Err()
	}

	runner := NewRunner(RunnerOpts{Config: cfg, Logger: shared.NewLogger(io.Discard), Factory: mock.Factory()})
	rec := runner.newReconciler(cfg, nil, runner.logger)
	if err := rec.Start("spotify-likes"); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	runner.awaitWorker(rec)

	select {
	case <-exited:
	default:
		t.Error("expected the worker to have exited before awaitWorker returned")
	}
}
