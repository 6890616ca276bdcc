package solver

import (
	"encoding/json"
	"testing"
)

func TestSolverJSONRoundTrip(t *testing.T) {
	adam, err := NewAdam(0.001, 1e-8, 0.9, 0.999, 32, 10.0)
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(adam)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Solver
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.Type != Adam {
		t.Errorf("expected type Adam, got %v", decoded.Type)
	}
	config, ok := decoded.Config.(*AdamConfig)
	if !ok {
		t.Fatalf("expected *AdamConfig, got %T", decoded.Config)
	}
	if config.StepSize != 0.001 || config.Clip != 10.0 {
		t.Errorf("decoded config differs: %+v", config)
	}
	if decoded.Solver == nil {
		t.Error("expected a Gorgonia solver to be created on unmarshal")
	}
}

func TestRMSPropJSONRoundTrip(t *testing.T) {
	rmsprop, err := NewRMSProp(0.001, 1e-8, 0.001, 0.9, 32, 5.0)
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(rmsprop)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Solver
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.Type != RMSProp {
		t.Errorf("expected type RMSProp, got %v", decoded.Type)
	}
	config, ok := decoded.Config.(*RMSPropConfig)
	if !ok {
		t.Fatalf("expected *RMSPropConfig, got %T", decoded.Config)
	}
	if config.Rho != 0.9 || config.Clip != 5.0 {
		t.Errorf("decoded config differs: %+v", config)
	}
	if decoded.Solver == nil {
		t.Error("expected a Gorgonia solver to be created on unmarshal")
	}
}

func TestVanillaJSONRoundTrip(t *testing.T) {
	vanilla, err := NewDefaultVanilla(0.01, 16)
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(vanilla)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Solver
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.Type != Vanilla {
		t.Errorf("expected type Vanilla, got %v", decoded.Type)
	}
	config, ok := decoded.Config.(*VanillaConfig)
	if !ok {
		t.Fatalf("expected *VanillaConfig, got %T", decoded.Config)
	}
	if config.StepSize != 0.01 || config.Clip > 0 {
		t.Errorf("decoded config differs: %+v", config)
	}
}

func TestUnknownSolverType(t *testing.T) {
	var decoded Solver
	err := json.Unmarshal([]byte(`{"Type": "Newton", "Config": {}}`),
		&decoded)
	if err == nil {
		t.Error("expected error for unknown solver type")
	}
}

func TestInvalidSolverConfigPairing(t *testing.T) {
	if _, err := newSolver(Adam, VanillaConfig{}); err == nil {
		t.Error("expected error for mismatched type and config")
	}
}
