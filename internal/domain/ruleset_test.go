package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDefaultRuleConfig(t *testing.T) {
	for _, rt := range RuleTypes() {
		t.Run(string(rt), func(t *testing.T) {
			cfg, err := DefaultRuleConfig(rt)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Type() != rt {
				t.Errorf("expected type %s, got %s", rt, cfg.Type())
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("default config should validate: %v", err)
			}
		})
	}

	t.Run("UnknownType", func(t *testing.T) {
		if _, err := DefaultRuleConfig("martingale_guard"); err == nil {
			t.Error("expected error for unknown rule type")
		}
	})
}

func TestCoolingOffValidate(t *testing.T) {
	t.Run("NeedsAtLeastOneTier", func(t *testing.T) {
		cfg := CoolingOffConfig{Metric: MetricSLCount}
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for empty tiers")
		}
	})

	t.Run("RejectsNonPositiveTier", func(t *testing.T) {
		cfg := CoolingOffConfig{
			Metric: MetricConsecutive,
			Tiers:  []CoolingOffTier{{Threshold: 0, WindowHours: 24, CoolOffHours: 12}},
		}
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for zero threshold")
		}
	})
}

func TestMaxActiveTradesHardCap(t *testing.T) {
	t.Run("HardCapBelowBaseCapRejected", func(t *testing.T) {
		cap := 2
		cfg := MaxActiveTradesConfig{
			BaseCap:     5,
			HardCap:     &cap,
			ResetPolicy: ResetNever,
		}
		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected error when hard cap is below base cap")
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("UnboundedSentinelAccepted", func(t *testing.T) {
		cfg := MaxActiveTradesConfig{BaseCap: 5, ResetPolicy: ResetMonthly}
		if !cfg.Unbounded() {
			t.Error("nil hard cap should report unbounded")
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("ZeroHardCapInvalid", func(t *testing.T) {
		cap := 0
		cfg := MaxActiveTradesConfig{BaseCap: 1, HardCap: &cap, ResetPolicy: ResetNever}
		if err := cfg.Validate(); err == nil {
			t.Error("hard cap of zero must be rejected, it is not the unbounded sentinel")
		}
	})

	t.Run("ClearingUnboundedSubstitutesDefault", func(t *testing.T) {
		cfg := MaxActiveTradesConfig{BaseCap: 3, ResetPolicy: ResetNever}
		bounded := cfg.WithUnbounded(false)
		if bounded.HardCap == nil || *bounded.HardCap != DefaultHardCap {
			t.Errorf("expected default hard cap %d, got %v", DefaultHardCap, bounded.HardCap)
		}
		// The original value is untouched.
		if cfg.HardCap != nil {
			t.Error("WithUnbounded must not mutate the receiver")
		}
	})

	t.Run("DefaultSubstitutionRespectsBaseCap", func(t *testing.T) {
		cfg := MaxActiveTradesConfig{BaseCap: 50, ResetPolicy: ResetNever}
		bounded := cfg.WithUnbounded(false)
		if err := bounded.Validate(); err != nil {
			t.Errorf("substituted cap must satisfy the hard-cap invariant: %v", err)
		}
	})
}

func TestPipCancelLimitValidate(t *testing.T) {
	valid := PipCancelLimitConfig{
		Band:            PipBand{FromPips: 1, ToPips: 10},
		MinHoldMinutes:  15,
		MaxCancels:      2,
		Window:          WindowUTCDay,
		SuspensionHours: 12,
	}

	tests := []struct {
		name    string
		mutate  func(c PipCancelLimitConfig) PipCancelLimitConfig
		wantErr bool
	}{
		{"Valid", func(c PipCancelLimitConfig) PipCancelLimitConfig { return c }, false},
		{"InvertedBand", func(c PipCancelLimitConfig) PipCancelLimitConfig {
			c.Band = PipBand{FromPips: 10, ToPips: 1}
			return c
		}, true},
		{"NegativeBand", func(c PipCancelLimitConfig) PipCancelLimitConfig {
			c.Band = PipBand{FromPips: -1, ToPips: 5}
			return c
		}, true},
		{"ZeroSuspension", func(c PipCancelLimitConfig) PipCancelLimitConfig {
			c.SuspensionHours = 0
			return c
		}, true},
		{"UnknownWindow", func(c PipCancelLimitConfig) PipCancelLimitConfig {
			c.Window = "fortnight"
			return c
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(valid).Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDecodeRuleConfig(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		orig, _ := DefaultRuleConfig(RuleTypeMaxActiveTrades)
		raw, err := json.Marshal(orig)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		decoded, err := DecodeRuleConfig(RuleTypeMaxActiveTrades, raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		cfg, ok := decoded.(MaxActiveTradesConfig)
		if !ok {
			t.Fatalf("expected MaxActiveTradesConfig, got %T", decoded)
		}
		if cfg.BaseCap != 3 || cfg.HardCap == nil || *cfg.HardCap != DefaultHardCap {
			t.Errorf("decoded config lost fields: %+v", cfg)
		}
	})

	t.Run("UnknownTypeRejected", func(t *testing.T) {
		if _, err := DecodeRuleConfig("grid_guard", []byte(`{}`)); err == nil {
			t.Error("unknown rule_type must be rejected at the decode boundary")
		}
	})
}

func TestSubRuleValidate(t *testing.T) {
	cfg, _ := DefaultRuleConfig(RuleTypeCoolingOff)

	t.Run("TagMismatch", func(t *testing.T) {
		sr := SubRule{RuleType: RuleTypeDirectionGuard, Config: cfg}
		if err := sr.Validate(); err == nil {
			t.Error("expected error for tag/config mismatch")
		}
	})

	t.Run("MissingConfig", func(t *testing.T) {
		sr := SubRule{RuleType: RuleTypeCoolingOff}
		if err := sr.Validate(); err == nil {
			t.Error("expected error for nil config")
		}
	})
}

func TestRuleSetValidate(t *testing.T) {
	rs := &RuleSet{ID: "rs-1", Name: "Scalper guard", Markets: []Market{MarketForex}}
	if err := rs.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("EmptyMarkets", func(t *testing.T) {
		bad := &RuleSet{ID: "rs-2", Name: "No markets"}
		if err := bad.Validate(); err == nil {
			t.Error("expected error for empty markets")
		}
	})

	t.Run("AllIsNotStorable", func(t *testing.T) {
		bad := &RuleSet{ID: "rs-3", Name: "Bad market", Markets: []Market{MarketAll}}
		if err := bad.Validate(); err == nil {
			t.Error("the All sentinel must not be storable on a rule set")
		}
	})
}

func TestRuleTypeShortCodes(t *testing.T) {
	want := map[RuleType]string{
		RuleTypeCoolingOff:      "CO",
		RuleTypeDirectionGuard:  "GD",
		RuleTypeMaxActiveTrades: "AC",
		RuleTypePipCancelLimit:  "PC",
	}
	for rt, code := range want {
		if got := rt.ShortCode(); got != code {
			t.Errorf("%s: expected %s, got %s", rt, code, got)
		}
		back, ok := RuleTypeFromShortCode(code)
		if !ok || back != rt {
			t.Errorf("%s: round trip through %s failed", rt, code)
		}
	}
}
