package config

import (
	"os"
	"path/filepath"
	"testing"

	"eurotherm-supervisor/internal/model"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, `
server:
  ip: "127.0.0.1"
  port: 50051
  timeout: "5s"
devices:
  - name: d1
    unitAddress: 1
    connection:
      port: /dev/ttyUSB0
      baudRate: 9600
    sampling_rate: "2Hz"
    driver: generic
  - name: d2
    unitAddress: 2
    connection:
      port: /dev/ttyUSB0
      baudRate: 9600
    sampling_rate: "1Hz"
    driver: simulate
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerIP != "127.0.0.1" || cfg.ServerPort != 50051 {
		t.Fatalf("server settings = %+v", cfg)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("len(Devices) = %d, want 2", len(cfg.Devices))
	}
	if cfg.Devices[0].Driver != model.DriverGeneric {
		t.Fatalf("Devices[0].Driver = %v, want generic", cfg.Devices[0].Driver)
	}
	if hz, _ := cfg.Devices[0].SamplingRate.In("Hz"); hz != 2 {
		t.Fatalf("Devices[0].SamplingRate = %v Hz, want 2", hz)
	}
}

func TestLoadRejectsUnknownTopLevelKey(t *testing.T) {
	path := writeTempConfig(t, `
server:
  ip: "127.0.0.1"
  port: 1
bogus_key: true
devices:
  - name: d1
    sampling_rate: "1Hz"
    driver: simulate
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded with an unknown top-level key")
	}
}

func TestLoadRejectsDuplicateDeviceNames(t *testing.T) {
	path := writeTempConfig(t, `
devices:
  - name: d1
    sampling_rate: "1Hz"
    driver: simulate
  - name: d1
    sampling_rate: "1Hz"
    driver: simulate
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded with duplicate device names")
	}
}

func TestLoadRejectsNonPositiveSamplingRate(t *testing.T) {
	path := writeTempConfig(t, `
devices:
  - name: d1
    sampling_rate: "0Hz"
    driver: simulate
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded with a zero sampling_rate")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	path := writeTempConfig(t, `
devices:
  - name: d1
    sampling_rate: "1Hz"
    driver: not-a-driver
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded with an unknown driver kind")
	}
}
