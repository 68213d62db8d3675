package config

import "testing"

func TestValidate_InvalidDriver(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver: "postgres",
			Addrs:  []string{"localhost:6379"},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid database driver")
	}

	expected := `database.driver must be "valkey" or "redis", got "postgres"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidDrivers(t *testing.T) {
	for _, driver := range []string{"valkey", "redis"} {
		t.Run("driver="+driver, func(t *testing.T) {
			cfg := Config{
				HTTP: HTTPConfig{Port: 8080},
				Database: DatabaseConfig{
					Driver: driver,
					Addrs:  []string{"localhost:6379"},
				},
			}

			err := cfg.Validate()
			if err != nil {
				t.Fatalf("unexpected error for valid driver %q: %v", driver, err)
			}
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 0},
		Database: DatabaseConfig{
			Driver: "valkey",
			Addrs:  []string{"localhost:6379"},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver: "valkey",
			Addrs:  []string{},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_InvalidPrinterURL(t *testing.T) {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver: "valkey",
			Addrs:  []string{"localhost:6379"},
		},
		Printer: PrinterConfig{BaseURL: "printer.local:8899"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for printer base_url without scheme")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != "valkey" {
		t.Errorf("expected Driver='valkey', got %q", cfg.Database.Driver)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Printer.PollIntervalSec != 60 {
		t.Errorf("expected PollIntervalSec=60, got %d", cfg.Printer.PollIntervalSec)
	}
	if cfg.Printer.TimeoutSec != 10 {
		t.Errorf("expected TimeoutSec=10, got %d", cfg.Printer.TimeoutSec)
	}
	if cfg.Tracking.Slots != 4 {
		t.Errorf("expected Slots=4, got %d", cfg.Tracking.Slots)
	}
	if cfg.Tracking.HistoryCap != 50 {
		t.Errorf("expected HistoryCap=50, got %d", cfg.Tracking.HistoryCap)
	}
	if cfg.Tracking.SanityCeilingMM != 50000 {
		t.Errorf("expected SanityCeilingMM=50000, got %v", cfg.Tracking.SanityCeilingMM)
	}
	if !cfg.Tracking.AutoLockDefault() {
		t.Error("expected AutoLock default true")
	}
	if cfg.Storage.KeyPrefix != "spooltrack:" {
		t.Errorf("expected KeyPrefix='spooltrack:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	autoLock := false
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{Driver: "redis", ReadinessTimeout: 15},
		Printer:  PrinterConfig{PollIntervalSec: 5, TimeoutSec: 3},
		Tracking: TrackingConfig{Slots: 8, HistoryCap: 200, SanityCeilingMM: 100000, AutoLock: &autoLock},
		Storage:  StorageConfig{KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != "redis" {
		t.Errorf("expected Driver='redis', got %q", cfg.Database.Driver)
	}
	if cfg.Printer.PollIntervalSec != 5 {
		t.Errorf("expected PollIntervalSec=5, got %d", cfg.Printer.PollIntervalSec)
	}
	if cfg.Tracking.Slots != 8 {
		t.Errorf("expected Slots=8, got %d", cfg.Tracking.Slots)
	}
	if cfg.Tracking.AutoLockDefault() {
		t.Error("explicit auto_lock=false must survive ApplyDefaults")
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
}
