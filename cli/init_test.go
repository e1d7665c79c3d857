package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitCmdScaffoldsWorkspace(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := newInitCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("run init: %v", err)
	}

	raw, err := os.ReadFile(configFileName)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(raw), "schema_dir:") {
		t.Fatalf("unexpected config content:\n%s", raw)
	}
	if _, err := os.Stat(filepath.Join("schema", ".gitkeep")); err != nil {
		t.Fatalf("schema directory not scaffolded: %v", err)
	}
	if !strings.Contains(buf.String(), "Initialized aotq workspace.") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestInitCmdIsIdempotent(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := newInitCmd()
	cmd.SetOut(&bytes.Buffer{})
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if err := os.WriteFile(configFileName, []byte("module: customized\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("second init: %v", err)
	}
	raw, err := os.ReadFile(configFileName)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if string(raw) != "module: customized\n" {
		t.Fatalf("init overwrote existing config:\n%s", raw)
	}
}

func TestNewCmdScaffoldsEntity(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := newNewCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	if err := cmd.RunE(cmd, []string{"order"}); err != nil {
		t.Fatalf("run new: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join("schema", "Order.schema.go"))
	if err != nil {
		t.Fatalf("read scaffold: %v", err)
	}
	content := string(raw)
	if !strings.Contains(content, "type Order struct") {
		t.Fatalf("missing entity struct:\n%s", content)
	}
	if !strings.Contains(content, "type OrderRepository interface") {
		t.Fatalf("missing repository interface:\n%s", content)
	}
	if !strings.Contains(content, `aotq:"id"`) {
		t.Fatalf("missing id tag:\n%s", content)
	}
}

func TestNewCmdRefusesToOverwrite(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := newNewCmd()
	cmd.SetOut(&bytes.Buffer{})
	if err := cmd.RunE(cmd, []string{"Order"}); err != nil {
		t.Fatalf("first new: %v", err)
	}
	err := cmd.RunE(cmd, []string{"Order"})
	var cerr CommandError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if cerr.ExitStatus() != 2 {
		t.Fatalf("exit status = %d, want 2", cerr.ExitStatus())
	}
}

func TestNewCmdHonorsSchemaDir(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.WriteFile(configFileName, []byte("schema_dir: declarations\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newNewCmd()
	cmd.SetOut(&bytes.Buffer{})
	if err := cmd.RunE(cmd, []string{"Order"}); err != nil {
		t.Fatalf("run new: %v", err)
	}
	if _, err := os.Stat(filepath.Join("declarations", "Order.schema.go")); err != nil {
		t.Fatalf("scaffold not written to configured dir: %v", err)
	}
}
