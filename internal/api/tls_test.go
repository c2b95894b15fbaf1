package api

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInitTLS(t *testing.T) {
	tests := []struct {
		name       string
		cert, key  string
		wantEnable bool
	}{
		{"no paths", "", "", false},
		{"only cert", "/path/to/cert.pem", "", false},
		{"only key", "", "/path/to/key.pem", false},
		{"both set", "/path/to/cert.pem", "/path/to/key.pem", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetTLSConfigForTest(nil)
			InitTLS(tt.cert, tt.key)
			if IsTLSEnabled() != tt.wantEnable {
				t.Errorf("IsTLSEnabled() = %v, want %v", IsTLSEnabled(), tt.wantEnable)
			}
		})
	}
	SetTLSConfigForTest(nil)
}

func TestInitTLS_BothSetKeepsPaths(t *testing.T) {
	defer SetTLSConfigForTest(nil)
	InitTLS("/path/to/cert.pem", "/path/to/key.pem")

	cfg := GetTLSConfig()
	if cfg == nil {
		t.Fatal("GetTLSConfig should return non-nil when TLS is enabled")
	}
	if cfg.CertFile != "/path/to/cert.pem" {
		t.Errorf("CertFile = %q, want %q", cfg.CertFile, "/path/to/cert.pem")
	}
	if cfg.KeyFile != "/path/to/key.pem" {
		t.Errorf("KeyFile = %q, want %q", cfg.KeyFile, "/path/to/key.pem")
	}

	// Re-initialising without paths turns TLS back off.
	InitTLS("", "")
	if IsTLSEnabled() {
		t.Error("TLS should be disabled after InitTLS with empty paths")
	}
}

func TestLoadTLSConfig_NotEnabled(t *testing.T) {
	SetTLSConfigForTest(nil)

	if cfg := LoadTLSConfig(nil); cfg != nil {
		t.Error("LoadTLSConfig should return nil when TLS is not enabled")
	}
}

func TestLoadTLSConfig_InvalidFiles(t *testing.T) {
	defer SetTLSConfigForTest(nil)
	SetTLSConfigForTest(&TLSConfig{
		CertFile: "/nonexistent/cert.pem",
		KeyFile:  "/nonexistent/key.pem",
	})

	if cfg := LoadTLSConfig(logrus.New()); cfg != nil {
		t.Error("LoadTLSConfig should return nil when cert files don't exist")
	}
}
