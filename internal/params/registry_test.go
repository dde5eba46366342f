package params

import (
	"testing"

	"periodqc/internal/errors"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	tests := []struct {
		name      string
		column    string
		lower     float64
		upper     float64
		valid     []float64
		invalid   []float64
		unbounded bool
	}{
		{name: "ls", column: "power", lower: 0.05, upper: 0.05, valid: []float64{0, 0.5, 1}, invalid: []float64{-0.1, 1.5}},
		{name: "t", column: "Tmag", lower: 0.5, upper: 0.5, valid: []float64{-5, 0, 18}, unbounded: true},
		{name: "snr", column: "snr", lower: 2.5, upper: 2.5, valid: []float64{0.001, 50}, invalid: []float64{0, -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := r.Lookup(tt.name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if spec.Column != tt.column {
				t.Fatalf("column: got %s, want %s", spec.Column, tt.column)
			}
			if spec.DefaultLower != tt.lower || spec.DefaultUpper != tt.upper {
				t.Fatalf("defaults: got -%g/+%g, want -%g/+%g", spec.DefaultLower, spec.DefaultUpper, tt.lower, tt.upper)
			}
			for _, v := range tt.valid {
				if err := spec.CheckValue(v); err != nil {
					t.Fatalf("value %g rejected: %v", v, err)
				}
			}
			for _, v := range tt.invalid {
				err := spec.CheckValue(v)
				if err == nil {
					t.Fatalf("value %g should be out of domain", v)
				}
				if errors.GetCode(err) != errors.CodeValidationError {
					t.Fatalf("got code %s, want %s", errors.GetCode(err), errors.CodeValidationError)
				}
			}
			if tt.unbounded && spec.Validate != nil {
				t.Fatal("expected no domain validator")
			}
		})
	}
}

func TestLookupUnknownParameter(t *testing.T) {
	r := Default()

	_, err := r.Lookup("colour")
	if err == nil {
		t.Fatal("expected error for unknown parameter")
	}
	if errors.GetCode(err) != errors.CodeValidationError {
		t.Fatalf("got code %s, want %s", errors.GetCode(err), errors.CodeValidationError)
	}
}

func TestNamesAndColumnsAreSorted(t *testing.T) {
	r := Default()

	names := r.Names()
	want := []string{"ls", "snr", "t"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range names {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}

	cols := r.Columns()
	wantCols := []string{"power", "snr", "Tmag"}
	for i := range cols {
		if cols[i] != wantCols[i] {
			t.Fatalf("got %v, want %v", cols, wantCols)
		}
	}
}

func TestRegisterCustomParameter(t *testing.T) {
	r := Default()
	r.Register(Spec{Name: "teff", Column: "Teff", DefaultLower: 100, DefaultUpper: 100})

	if !r.Has("teff") {
		t.Fatal("registered parameter not found")
	}
	spec, err := r.Lookup("teff")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := spec.CheckValue(5777); err != nil {
		t.Fatalf("unbounded parameter rejected a value: %v", err)
	}
}
