package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voiceclone-server-go/internal/utils"
)

// chdirTemp mirrors t.Chdir(t.TempDir()) for toolchains before Go 1.24.
func chdirTemp(t *testing.T) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
}

func TestSmokeLoadConfigAndLogger(t *testing.T) {
	chdirTemp(t)

	config, logger, err := loadConfigAndLogger(context.Background())
	if err != nil {
		t.Fatalf("loadConfigAndLogger failed: %v", err)
	}
	if config == nil {
		t.Fatal("config is nil")
	}
	if logger == nil {
		t.Fatal("logger is nil")
	}
	logger.Close()
}

func TestInitGraphOrder(t *testing.T) {
	steps := InitGraph()
	want := []string{
		"config:load-file",
		"logging:init-provider",
		"storage:init-database",
		"observability:setup-hooks",
		"app:init-context",
	}
	if len(steps) != len(want) {
		t.Fatalf("unexpected step count: got %d want %d", len(steps), len(want))
	}
	for i, step := range steps {
		if step.ID != want[i] {
			t.Fatalf("step %d mismatch: got %s want %s", i, step.ID, want[i])
		}
	}

	// 每个依赖都必须在它之前完成
	seen := map[string]bool{}
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if !seen[dep] {
				t.Fatalf("step %s depends on %s which is not scheduled earlier", step.ID, dep)
			}
		}
		seen[step.ID] = true
	}
}

func TestExecuteInitGraph(t *testing.T) {
	chdirTemp(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := &appState{}
	if err := executeInitSteps(ctx, InitGraph(), state); err != nil {
		t.Fatalf("executeInitSteps failed: %v", err)
	}
	if state.config == nil {
		t.Fatal("config is nil after init")
	}
	if state.logger == nil {
		t.Fatal("logger is nil after init")
	}
	if state.app == nil {
		t.Fatal("application context is nil after init")
	}
	if state.observabilityShutdown == nil {
		t.Fatal("observability shutdown hook not set")
	}

	cancel()
	if err := state.app.Teardown(context.Background()); err != nil {
		t.Fatalf("teardown failed: %v", err)
	}
	state.observabilityShutdown(context.Background())
	state.logger.Close()
}

func TestExecuteInitStepsRejectsBrokenGraph(t *testing.T) {
	state := &appState{}

	err := executeInitSteps(context.Background(), []initStep{
		{
			ID:        "b",
			DependsOn: []string{"a"},
			Execute:   func(context.Context, *appState) error { return nil },
		},
	}, state)
	if err == nil {
		t.Fatal("expected unsatisfied dependency error")
	}

	err = executeInitSteps(context.Background(), []initStep{
		{ID: "a"},
	}, state)
	if err == nil {
		t.Fatal("expected missing execute error")
	}
}

func TestLogBootstrapGraphOutput(t *testing.T) {
	tmp := t.TempDir()
	logCfg := &utils.LogCfg{
		LogLevel: "info",
		LogDir:   tmp,
		LogFile:  "graph.log",
	}
	logger, err := utils.NewLogger(logCfg)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logBootstrapGraph(InitGraph(), logger)
	logger.Close()

	data, err := os.ReadFile(filepath.Join(tmp, logCfg.LogFile))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "初始化依赖关系概览") {
		t.Fatalf("graph header missing in log output: %s", content)
	}
	for _, id := range []string{
		"config:load-file",
		"logging:init-provider",
		"storage:init-database",
		"observability:setup-hooks",
		"app:init-context",
	} {
		if !strings.Contains(content, id) {
			t.Fatalf("expected graph output to contain %q, got: %s", id, content)
		}
	}
}
