package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.ServiceName != "logging-service" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.LogDir != "logs" {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.MaxFileSize != 10485760 {
		t.Errorf("MaxFileSize = %d", cfg.MaxFileSize)
	}
	if cfg.BackupCount != 5 {
		t.Errorf("BackupCount = %d", cfg.BackupCount)
	}
	if cfg.MetricsPort != 8080 {
		t.Errorf("MetricsPort = %d", cfg.MetricsPort)
	}
	if cfg.AWSRegion != "us-west-2" {
		t.Errorf("AWSRegion = %q", cfg.AWSRegion)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SERVICE_NAME", "payments")
	t.Setenv("LOG_DIR", "/var/log/payments")
	t.Setenv("MAX_FILE_SIZE", "1048576")
	t.Setenv("BACKUP_COUNT", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.ServiceName != "payments" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.LogDir != "/var/log/payments" {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize = %d", cfg.MaxFileSize)
	}
	if cfg.BackupCount != 2 {
		t.Errorf("BackupCount = %d", cfg.BackupCount)
	}
}

func TestLoadRejectsInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "LOUD")

	if _, err := Load(); err == nil {
		t.Fatal("invalid LOG_LEVEL must fail at init")
	}
}

func TestLoadRejectsBadSize(t *testing.T) {
	t.Setenv("MAX_FILE_SIZE", "-5")

	if _, err := Load(); err == nil {
		t.Fatal("negative MAX_FILE_SIZE must fail at init")
	}
}
