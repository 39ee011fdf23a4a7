package config

import (
	"sync"
	"testing"
)

func resetGlobal() {
	SetConfig(nil)
	initOnce = sync.Once{}
}

func TestInitialize(t *testing.T) {
	resetGlobal()
	path := writeConfig(t, "proxy:\n  listen_address: \"127.0.0.1:9191\"\npolicy:\n  backend: memory\n")

	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	cfg := GetConfig()
	if cfg == nil || cfg.Proxy.ListenAddress != "127.0.0.1:9191" {
		t.Fatalf("config = %+v", cfg)
	}

	other := writeConfig(t, "proxy:\n  listen_address: \"0.0.0.0:1\"\n")
	if err := Initialize(other); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if GetConfig().Proxy.ListenAddress != "127.0.0.1:9191" {
		t.Error("second Initialize must be ignored")
	}
}

func TestReloadConfig(t *testing.T) {
	resetGlobal()
	SetConfig(NewTestConfig().Build())

	bad := writeConfig(t, "telemetry:\n  logging:\n    level: loud\n")
	if err := ReloadConfig(bad); err == nil {
		t.Fatal("expected reload failure")
	}
	if GetConfig().Telemetry.Logging.Level != DefaultLoggingLevel {
		t.Error("failed reload replaced configuration")
	}

	good := writeConfig(t, "telemetry:\n  logging:\n    level: warn\n")
	if err := ReloadConfig(good); err != nil {
		t.Fatalf("ReloadConfig() error = %v", err)
	}
	if GetConfig().Telemetry.Logging.Level != "warn" {
		t.Errorf("level = %q", GetConfig().Telemetry.Logging.Level)
	}
}

func TestMustGetConfig(t *testing.T) {
	resetGlobal()
	defer func() {
		if recover() == nil {
			t.Error("MustGetConfig() did not panic")
		}
	}()
	MustGetConfig()
}
