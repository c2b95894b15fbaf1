package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSecret(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	return p
}

func TestSecretFromEnv(t *testing.T) {
	t.Setenv("STUDIO_PG_PASSWORD", "env-value")
	t.Setenv("STUDIO_PG_PASSWORD_FILE", "")

	value, err := Secret("PG_PASSWORD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "env-value" {
		t.Errorf("got %q, want %q", value, "env-value")
	}
}

func TestSecretNameIsUpperCased(t *testing.T) {
	t.Setenv("STUDIO_TESTER_USER", "qa")

	value, err := Secret("tester_user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "qa" {
		t.Errorf("got %q, want %q", value, "qa")
	}
}

func TestSecretFileWinsAndIsTrimmed(t *testing.T) {
	t.Setenv("STUDIO_PG_PASSWORD", "env-value")
	t.Setenv("STUDIO_PG_PASSWORD_FILE", writeSecret(t, "  file-value \n\n"))

	value, err := Secret("PG_PASSWORD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "file-value" {
		t.Errorf("got %q, want %q (file should win over env)", value, "file-value")
	}
}

func TestSecretUnset(t *testing.T) {
	t.Setenv("STUDIO_PG_PASSWORD", "")
	t.Setenv("STUDIO_PG_PASSWORD_FILE", "")

	value, err := Secret("PG_PASSWORD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "" {
		t.Errorf("got %q, want empty string", value)
	}
}

func TestSecretEmptyFile(t *testing.T) {
	t.Setenv("STUDIO_PG_PASSWORD", "env-value")
	t.Setenv("STUDIO_PG_PASSWORD_FILE", writeSecret(t, ""))

	value, err := Secret("PG_PASSWORD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "" {
		t.Errorf("an empty file is an empty secret, got %q", value)
	}
}

func TestSecretUnreadableFile(t *testing.T) {
	t.Setenv("STUDIO_MANAGER_PASS_FILE", filepath.Join(t.TempDir(), "missing"))

	_, err := Secret("MANAGER_PASS")
	if err == nil {
		t.Fatal("expected error when the file does not exist")
	}
	if !strings.Contains(err.Error(), "STUDIO_MANAGER_PASS_FILE") {
		t.Errorf("error should name the variable, got %q", err)
	}
}

func TestRoleCredentials(t *testing.T) {
	t.Setenv("STUDIO_DEVELOPER_USER", "dev")
	t.Setenv("STUDIO_DEVELOPER_PASS", "")
	t.Setenv("STUDIO_DEVELOPER_PASS_FILE", writeSecret(t, "devpass\n"))
	t.Setenv("STUDIO_DESIGNER_USER", "artist")
	t.Setenv("STUDIO_DESIGNER_PASS", "")
	t.Setenv("STUDIO_DESIGNER_PASS_FILE", "")

	dev, err := RoleCredentials("developer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dev.User != "dev" || dev.Pass != "devpass" || !dev.Complete() {
		t.Errorf("unexpected developer credentials %+v", dev)
	}

	designer, err := RoleCredentials("designer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if designer.Complete() {
		t.Error("a user without a password is not a complete pair")
	}
}
