package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file should fall back to defaults: %v", err)
	}

	if cfg.Server.HTTPPort != 5000 {
		t.Errorf("Expected default HTTP port 5000, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Expected default storage type memory, got %s", cfg.Storage.Type)
	}

	primary, ok := cfg.Roles["primary"]
	if !ok {
		t.Fatal("Expected default primary role")
	}
	if primary.LimitMinutes != 180 {
		t.Errorf("Expected primary limit 180, got %d", primary.LimitMinutes)
	}
	if len(primary.Milestones) != 5 || primary.Milestones[0] != 30 {
		t.Errorf("Unexpected primary milestones: %v", primary.Milestones)
	}

	if cfg.Quota.FreePagesPerDay != 20 {
		t.Errorf("Expected default free pages 20, got %d", cfg.Quota.FreePagesPerDay)
	}
	if cfg.Quota.Price().StringFixed(2) != "0.50" {
		t.Errorf("Expected default price 0.50, got %s", cfg.Quota.Price())
	}

	if len(cfg.Directory.Members) != 3 {
		t.Errorf("Expected default roster of 3 members, got %d", len(cfg.Directory.Members))
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 8080
quota:
  free_pages_per_day: 50
  price_per_page: "0.25"
roles:
  primary:
    limit_minutes: 240
    milestones: [60, 180, 230]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("Expected HTTP port 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Quota.FreePagesPerDay != 50 {
		t.Errorf("Expected free pages 50, got %d", cfg.Quota.FreePagesPerDay)
	}
	if cfg.Roles["primary"].LimitMinutes != 240 {
		t.Errorf("Expected primary limit 240, got %d", cfg.Roles["primary"].LimitMinutes)
	}
}

func TestLoad_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			"descending milestones",
			`
roles:
  primary:
    limit_minutes: 180
    milestones: [90, 30]
`,
		},
		{
			"milestone past limit",
			`
roles:
  primary:
    limit_minutes: 60
    milestones: [30, 60]
`,
		},
		{
			"unparseable price",
			`
quota:
  price_per_page: "fifty cents"
`,
		},
		{
			"member with unknown role",
			`
directory:
  members:
    - registration: "MA999999"
      cpf: "444.444.444-44"
      name: "Dr. Teste"
      role: "partner"
`,
		},
		{
			"bad storage type",
			`
storage:
  type: "bolt"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}
