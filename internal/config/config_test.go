package config

import "testing"

func TestValidateRejectsEmptyAddr(t *testing.T) {
	c := &Config{Addr: "", MaxConnections: 1, LogLevel: "info", LogFormat: "json"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for empty Addr")
	}
}

func TestValidateRejectsBadMaxConnections(t *testing.T) {
	c := &Config{Addr: ":9090", MaxConnections: 0, LogLevel: "info", LogFormat: "json"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for non-positive MaxConnections")
	}
}

func TestValidateRejectsOutOfRangeCPUThreshold(t *testing.T) {
	c := &Config{Addr: ":9090", MaxConnections: 1, CPURejectThreshold: 150, LogLevel: "info", LogFormat: "json"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for out-of-range CPURejectThreshold")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	c := &Config{Addr: ":9090", MaxConnections: 1, LogLevel: "verbose", LogFormat: "json"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for unknown LogLevel")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := &Config{
		Addr:               "127.0.0.1:5000",
		MaxConnections:     10000,
		CPURejectThreshold: 90,
		FrameRateLimit:     500,
		LogLevel:           "info",
		LogFormat:          "json",
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
