package gpio

import "testing"

func TestMockDriver_ReadBackWrittenLevel(t *testing.T) {
	d := NewMockDriver()
	if lvl, _ := d.ReadPin(18); lvl != Low {
		t.Errorf("unwritten pin = %v, want LOW", lvl)
	}
	if err := d.WritePin(18, High); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := d.ReadPin(18); lvl != High {
		t.Errorf("pin 18 = %v, want HIGH", lvl)
	}
	if err := d.WritePin(18, Low); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := d.ReadPin(18); lvl != Low {
		t.Errorf("pin 18 = %v, want LOW", lvl)
	}
}

func TestNewDriver_Mock(t *testing.T) {
	d, err := NewDriver(true)
	if err != nil {
		t.Fatalf("NewDriver(true) error: %v", err)
	}
	if _, ok := d.(*MockDriver); !ok {
		t.Errorf("NewDriver(true) = %T, want *MockDriver", d)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestLevel_String(t *testing.T) {
	if High.String() != "HIGH" || Low.String() != "LOW" {
		t.Errorf("String() = %q/%q", High.String(), Low.String())
	}
}
