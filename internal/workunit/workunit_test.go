package workunit_test

import (
	"errors"
	"slices"
	"testing"

	"openbq/internal/workunit"
)

func TestParseModeAliases(t *testing.T) {
	cases := map[string]workunit.Mode{
		"":            workunit.ModeFace,
		"Face":        workunit.ModeFace,
		"fingerprint": workunit.ModeFinger,
		"FINGER":      workunit.ModeFinger,
		" iris ":      workunit.ModeIris,
		"speech":      workunit.ModeSpeech,
	}
	for input, want := range cases {
		got, err := workunit.ParseMode(input)
		if err != nil {
			t.Fatalf("ParseMode(%q) error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseMode(%q) = %q, want %q", input, got, want)
		}
	}
	if _, err := workunit.ParseMode("palm"); err == nil {
		t.Fatal("expected error for unsupported mode")
	}
}

func TestParseEngine(t *testing.T) {
	if e, err := workunit.ParseEngine("OFIQ"); err != nil || e != workunit.EngineOFIQ {
		t.Fatalf("unexpected engine %q err=%v", e, err)
	}
	if e, err := workunit.ParseEngine(""); err != nil || e != workunit.EngineOBQE {
		t.Fatalf("expected default engine, got %q err=%v", e, err)
	}
	if _, err := workunit.ParseEngine("magic"); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestFusionCodes(t *testing.T) {
	for _, code := range []int{7, 6, 5, 3} {
		if !workunit.ValidFusionCode(code) {
			t.Fatalf("expected %d to be valid", code)
		}
	}
	for _, code := range []int{0, 1, 2, 4, 8} {
		if workunit.ValidFusionCode(code) {
			t.Fatalf("expected %d to be rejected", code)
		}
	}
}

func TestBatchOriented(t *testing.T) {
	cases := []struct {
		mode   workunit.Mode
		engine workunit.Engine
		want   bool
	}{
		{workunit.ModeSpeech, workunit.EngineOBQE, true},
		{workunit.ModeFace, workunit.EngineOFIQ, true},
		{workunit.ModeFace, workunit.EngineFusion, true},
		{workunit.ModeFace, workunit.EngineOBQE, false},
		{workunit.ModeFace, workunit.EngineBIQT, false},
		{workunit.ModeFinger, workunit.EngineOBQE, false},
		{workunit.ModeIris, workunit.EngineOBQE, false},
	}
	for _, tc := range cases {
		if got := workunit.BatchOriented(tc.mode, tc.engine); got != tc.want {
			t.Fatalf("BatchOriented(%s, %s) = %v, want %v", tc.mode, tc.engine, got, tc.want)
		}
	}
}

func TestDefaultTypes(t *testing.T) {
	if got := workunit.ModeSpeech.DefaultTypes(); !slices.Equal(got, []string{"wav"}) {
		t.Fatalf("speech types = %v", got)
	}
	if got := workunit.ModeFinger.DefaultTypes(); !slices.Contains(got, "wsq") {
		t.Fatalf("finger types missing wsq: %v", got)
	}
	if got := workunit.ModeFace.DefaultTypes(); slices.Contains(got, "wsq") {
		t.Fatalf("face types should not include wsq: %v", got)
	}
}

func TestWorkUnitValidate(t *testing.T) {
	cases := []struct {
		name string
		unit workunit.WorkUnit
		ok   bool
	}{
		{"file unit", workunit.WorkUnit{File: "a.jpg", Inputs: 1, Mode: workunit.ModeFace, Engine: workunit.EngineOBQE}, true},
		{"batch unit", workunit.WorkUnit{Folder: "/tmp/b1", Inputs: 30, Mode: workunit.ModeSpeech, Engine: workunit.EngineOBQE}, true},
		{"both set", workunit.WorkUnit{File: "a", Folder: "b", Inputs: 1, Mode: workunit.ModeFace}, false},
		{"neither set", workunit.WorkUnit{Inputs: 1, Mode: workunit.ModeFace}, false},
		{"file for batch engine", workunit.WorkUnit{File: "a.wav", Inputs: 1, Mode: workunit.ModeSpeech, Engine: workunit.EngineOBQE}, false},
		{"conversion outside finger", workunit.WorkUnit{File: "a.jpg", Inputs: 1, Mode: workunit.ModeIris, Engine: workunit.EngineOBQE, Conversion: workunit.Conversion{Target: "png"}}, false},
		{"bad fusion", workunit.WorkUnit{Folder: "/tmp/b", Inputs: 2, Mode: workunit.ModeFace, Engine: workunit.EngineFusion, FusionCode: 2}, false},
		{"no inputs", workunit.WorkUnit{File: "a.jpg", Mode: workunit.ModeFace, Engine: workunit.EngineOBQE}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.unit.Validate()
			if (err == nil) != tc.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestOutcomeVariants(t *testing.T) {
	unit := workunit.WorkUnit{File: "a.jpg", Inputs: 1}
	ok := workunit.Success(unit, []workunit.ResultRecord{{Path: "a.jpg"}})
	if ok.Failed() || len(ok.Records) != 1 {
		t.Fatalf("unexpected success outcome %#v", ok)
	}
	bad := workunit.Failure(unit, errors.New("boom"))
	if !bad.Failed() || bad.Records != nil {
		t.Fatalf("unexpected failure outcome %#v", bad)
	}
	if unit.Target() != "a.jpg" || unit.IsBatch() {
		t.Fatalf("unexpected target for file unit")
	}
}
