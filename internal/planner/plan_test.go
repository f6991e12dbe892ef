package planner

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestBuild(t *testing.T) {
	plan, err := Build(StrategyTwoPass, 3840, 2160, 8_000_000, 30)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if plan.Strategy != StrategyTwoPass {
		t.Errorf("Expected two-pass strategy, got %v", plan.Strategy)
	}
	if plan.Bitrate.TargetKbps != 2005 {
		t.Errorf("Expected 2005 kbps, got %d", plan.Bitrate.TargetKbps)
	}
	if plan.Scale.Height != 1080 {
		t.Errorf("Expected 1080 high output, got %d", plan.Scale.Height)
	}
	if plan.EffectiveDuration != 30 || plan.TargetBytes != 8_000_000 {
		t.Errorf("Unexpected plan inputs: %+v", plan)
	}
}

func TestBuild_InvalidDuration(t *testing.T) {
	if _, err := Build(StrategyHardware, 1920, 1080, 1_000_000, 0); err == nil {
		t.Error("Expected error for zero duration")
	}
}

func TestStrategyString(t *testing.T) {
	tests := map[Strategy]string{
		StrategyHardware: "hardware",
		StrategyTwoPass:  "two_pass",
		StrategyTiered:   "tiered",
		Strategy(0):      "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("Strategy(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
}

func TestEncodePlanJSON(t *testing.T) {
	data, err := json.Marshal(EncodePlan{Strategy: StrategyTiered})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if !strings.Contains(string(data), `"strategy":"tiered"`) {
		t.Errorf("Expected strategy encoded by name, got %s", data)
	}
}
