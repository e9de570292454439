package config

import (
	"os"
	"path/filepath"
	"testing"

	"quantsim/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_SignalInputs(t *testing.T) {
	path := writeConfig(t, `
inputs:
  prices: prices.csv
  entries: entries.csv
  exits: exits.csv
sim:
  initial_cash: 1000
  fee_rate: 0.001
  direction: both
  cash_sharing: true
  groups: [0, 0, 1]
run:
  track_equity: true
  workers: 4
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := c.ToSimConfig()
	if cfg.InitialCash != 1000 {
		t.Errorf("expected initial cash 1000, got %f", cfg.InitialCash)
	}
	if cfg.Direction != domain.DirBoth {
		t.Errorf("expected direction both, got %s", cfg.Direction)
	}
	if !cfg.CashSharing || len(cfg.Groups) != 3 {
		t.Errorf("expected cash sharing with 3 group entries, got %+v", cfg.Groups)
	}
	if !c.Run.TrackEquity || c.Run.Workers != 4 {
		t.Errorf("unexpected run config: %+v", c.Run)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
inputs:
  prices: prices.csv
  sizes: sizes.csv
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := c.ToSimConfig()
	def := domain.DefaultSimConfig()

	if cfg.InitialCash != def.InitialCash {
		t.Errorf("expected default initial cash %f, got %f", def.InitialCash, cfg.InitialCash)
	}
	if cfg.MinTradableUnit != def.MinTradableUnit {
		t.Errorf("expected default min unit, got %g", cfg.MinTradableUnit)
	}
	if !cfg.AllowPartialFills {
		t.Error("expected partial fills enabled by default")
	}
	if cfg.ConflictPolicy != domain.ConflictExit {
		t.Errorf("expected exit conflict policy, got %s", cfg.ConflictPolicy)
	}
}

func TestLoad_ExplicitZeroCash(t *testing.T) {
	path := writeConfig(t, `
inputs:
  prices: prices.csv
  sizes: sizes.csv
sim:
  initial_cash: 0
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg := c.ToSimConfig(); cfg.InitialCash != 0 {
		t.Errorf("explicit zero cash must survive defaults, got %f", cfg.InitialCash)
	}
}

func TestLoad_RejectsBothInputModes(t *testing.T) {
	path := writeConfig(t, `
inputs:
  prices: prices.csv
  sizes: sizes.csv
  entries: entries.csv
  exits: exits.csv
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for sizes together with entries/exits")
	}
}

func TestLoad_RejectsMissingExits(t *testing.T) {
	path := writeConfig(t, `
inputs:
  prices: prices.csv
  entries: entries.csv
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for entries without exits")
	}
}

func TestLoad_RejectsBadSizeType(t *testing.T) {
	path := writeConfig(t, `
inputs:
  prices: prices.csv
  sizes: sizes.csv
sim:
  size_type: bogus
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown size type")
	}
}

func TestLoad_RejectsNonContiguousGroups(t *testing.T) {
	path := writeConfig(t, `
inputs:
  prices: prices.csv
  sizes: sizes.csv
sim:
  groups: [0, 2, 1]
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-contiguous groups")
	}
}

func TestLoadUnchecked_SkipsValidation(t *testing.T) {
	path := writeConfig(t, `
sim:
  size_type: bogus
`)

	if _, err := LoadUnchecked(path); err != nil {
		t.Fatalf("LoadUnchecked must not validate: %v", err)
	}
}
