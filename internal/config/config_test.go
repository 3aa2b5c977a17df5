package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Name != "bsma" {
		t.Errorf("app.name = %q", cfg.App.Name)
	}
	if cfg.Market.SampleWindow != 15*time.Minute {
		t.Errorf("market.sample_window = %s", cfg.Market.SampleWindow)
	}
	if cfg.Alerts.ReconcileInterval != time.Minute {
		t.Errorf("alerts.reconcile_interval = %s", cfg.Alerts.ReconcileInterval)
	}
	if cfg.Alerts.ExpiryMargin != time.Hour {
		t.Errorf("alerts.expiry_margin = %s", cfg.Alerts.ExpiryMargin)
	}
	if len(cfg.Market.Resources) == 0 {
		t.Error("market.resources empty")
	}
	if cfg.Telegram.Enabled {
		t.Error("telegram enabled by default")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return cfg
	}

	cfg := base()
	cfg.Market.Resources = nil
	if err := cfg.Validate(); err == nil {
		t.Error("empty resources accepted")
	}

	cfg = base()
	cfg.Alerts.ReconcileInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero reconcile interval accepted")
	}

	cfg = base()
	cfg.Telegram.Enabled = true
	cfg.Telegram.BotToken = ""
	if err := cfg.Validate(); err == nil {
		t.Error("enabled telegram without token accepted")
	}
}
