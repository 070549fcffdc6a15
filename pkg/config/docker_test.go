package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveHost(t *testing.T) {
	tests := []struct {
		host     string
		inDocker bool
		expected string
	}{
		{"localhost", false, "localhost"},
		{"127.0.0.1", false, "127.0.0.1"},
		{"localhost", true, "host.docker.internal"},
		{"127.0.0.1", true, "host.docker.internal"},
		{"::1", true, "host.docker.internal"},
		{"fms.example.com", true, "fms.example.com"},
		{"192.168.1.100", true, "192.168.1.100"},
		{"host.docker.internal", true, "host.docker.internal"},
	}

	for _, tt := range tests {
		if got := resolveHost(tt.host, tt.inDocker); got != tt.expected {
			t.Errorf("resolveHost(%q, %v) = %q, want %q", tt.host, tt.inDocker, got, tt.expected)
		}
	}
}

func TestResolveHostForDocker_NonLoopbackUnchanged(t *testing.T) {
	// holds whether or not the tests run in a container
	for _, host := range []string{"fms.example.com", "10.0.0.5"} {
		if got := ResolveHostForDocker(host); got != host {
			t.Errorf("ResolveHostForDocker(%q) = %q, want unchanged", host, got)
		}
	}
}

func TestFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".dockerenv")
	if fileExists(path) {
		t.Fatalf("fileExists(%q) = true before creation", path)
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("failed to write marker: %v", err)
	}
	if !fileExists(path) {
		t.Errorf("fileExists(%q) = false after creation", path)
	}
}
