package model

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

func TestComponentMapBuilder_DiscoveryOrder(t *testing.T) {
	b := NewComponentMapBuilder()

	var wg sync.WaitGroup
	ids := []string{"src/c.ts", "src/a.ts", "src/b.ts", "src/d.ts"}
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if err := b.Insert(i, ComponentInfo{ID: id}); err != nil {
				t.Errorf("Insert(%d, %s) failed: %v", i, id, err)
			}
		}(i, id)
	}
	wg.Wait()

	m := b.Freeze()
	got := m.IDs()
	if fmt.Sprint(got) != fmt.Sprint(ids) {
		t.Errorf("IDs() = %v, want %v", got, ids)
	}
}

func TestComponentMapBuilder_WriteOnce(t *testing.T) {
	b := NewComponentMapBuilder()
	if err := b.Insert(0, ComponentInfo{ID: "a.ts", Lines: 1}); err != nil {
		t.Fatal(err)
	}
	if err := b.Insert(1, ComponentInfo{ID: "a.ts", Lines: 2}); err == nil {
		t.Error("duplicate id should be rejected")
	}
	if err := b.Insert(0, ComponentInfo{ID: "b.ts"}); err == nil {
		t.Error("duplicate index should be rejected")
	}

	m := b.Freeze()
	c, ok := m.Get("a.ts")
	if !ok || c.Lines != 1 {
		t.Errorf("first write should win, got %+v", c)
	}
}

func TestComponentMap_PartialSlots(t *testing.T) {
	b := NewComponentMapBuilder()
	_ = b.Insert(4, ComponentInfo{ID: "e.ts"})
	_ = b.Insert(1, ComponentInfo{ID: "b.ts"})

	m := b.Freeze()
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	if fmt.Sprint(m.IDs()) != "[b.ts e.ts]" {
		t.Errorf("IDs() = %v", m.IDs())
	}
}

func TestComponentMap_JSONIsOrderedArray(t *testing.T) {
	m := NewComponentMap(
		ComponentInfo{ID: "z.ts", Kind: KindModule},
		ComponentInfo{ID: "a.ts", Kind: KindStyle},
	)
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}

	var decoded []ComponentInfo
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("expected array form: %v", err)
	}
	if len(decoded) != 2 || decoded[0].ID != "z.ts" || decoded[1].ID != "a.ts" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestComponentMap_NilSafe(t *testing.T) {
	var m *ComponentMap
	if m.Len() != 0 || m.Has("x") || m.IDs() != nil {
		t.Error("nil map should behave as empty")
	}
	for range m.All() {
		t.Error("nil map should not iterate")
	}
}

func TestExportsName(t *testing.T) {
	c := ComponentInfo{Exports: []string{"Button", "default"}}
	if !c.ExportsName("Button") || !c.ExportsName("default") {
		t.Error("declared exports should be found")
	}
	if c.ExportsName("Missing") {
		t.Error("undeclared export should not be found")
	}

	star := ComponentInfo{Exports: []string{ExportAll}}
	if !star.ExportsName("Anything") {
		t.Error("star re-export should expose every name")
	}
}

func TestRiskLevel(t *testing.T) {
	if !(RiskLow.Rank() < RiskMedium.Rank() && RiskMedium.Rank() < RiskHigh.Rank() && RiskHigh.Rank() < RiskCritical.Rank()) {
		t.Error("risk ranks are not ordered")
	}
	if MaxRisk(RiskMedium, RiskCritical) != RiskCritical || MaxRisk(RiskHigh, RiskLow) != RiskHigh {
		t.Error("MaxRisk returned the wrong level")
	}
	if _, err := ParseRiskLevel("severe"); err == nil {
		t.Error("ParseRiskLevel should reject unknown levels")
	}
	if r, err := ParseRiskLevel("high"); err != nil || r != RiskHigh {
		t.Errorf("ParseRiskLevel(high) = %v, %v", r, err)
	}
}

func TestParseOrigin(t *testing.T) {
	tests := []struct {
		in      string
		want    Origin
		wantErr bool
	}{
		{"legacy", OriginLegacy, false},
		{"thirdParty", OriginThirdParty, false},
		{"vendor", OriginThirdParty, false},
		{"ancient", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOrigin(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOrigin(%q) = %v, %v", tt.in, got, err)
		}
	}
}
