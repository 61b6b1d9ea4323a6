package types

import (
	"encoding/json"
	"testing"
)

func TestNewQuantityFromString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Quantity
		wantErr bool
	}{
		{name: "integer", input: "25", want: 250000},
		{name: "fraction", input: "2.5", want: 25000},
		{name: "four decimals", input: "0.0001", want: 1},
		{name: "negative", input: "-3.25", want: -32500},
		{name: "zero", input: "0", want: 0},
		{name: "too many decimals", input: "1.00001", wantErr: true},
		{name: "garbage", input: "abc", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewQuantityFromString(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("want %d, got %d", tt.want, got)
			}
		})
	}
}

func TestQuantityString(t *testing.T) {
	tests := []struct {
		q    Quantity
		want string
	}{
		{NewQuantityFromFloat64(25), "25.0000"},
		{NewQuantityFromFloat64(2.5), "2.5000"},
		{NewQuantityFromInt64Scaled(1), "0.0001"},
		{NewQuantityFromFloat64(-3.25), "-3.2500"},
		{0, "0.0000"},
	}

	for _, tt := range tests {
		if got := tt.q.String(); got != tt.want {
			t.Errorf("Quantity(%d).String() = %q, want %q", tt.q, got, tt.want)
		}
	}
}

func TestQuantityJSONRoundTrip(t *testing.T) {
	type payload struct {
		Qty Quantity `json:"qty"`
	}

	in := payload{Qty: NewQuantityFromFloat64(12.75)}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"qty":12.7500}` {
		t.Errorf("unexpected JSON: %s", data)
	}

	var out payload
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Qty != in.Qty {
		t.Errorf("round trip mismatch: %d != %d", out.Qty, in.Qty)
	}

	// Quoted quantities are accepted too.
	var quoted payload
	if err := json.Unmarshal([]byte(`{"qty":"3.5"}`), &quoted); err != nil {
		t.Fatalf("unmarshal quoted: %v", err)
	}
	if quoted.Qty != NewQuantityFromFloat64(3.5) {
		t.Errorf("quoted mismatch: %d", quoted.Qty)
	}
}

func TestQuantityHelpers(t *testing.T) {
	q := NewQuantityFromFloat64(7.5)

	if !q.IsPositive() || q.IsNegative() || q.IsZero() {
		t.Error("sign predicates wrong for positive quantity")
	}
	if q.Neg() != -q {
		t.Error("Neg mismatch")
	}
	if q.Neg().Abs() != q {
		t.Error("Abs mismatch")
	}
	if q.Min(NewQuantityFromFloat64(3)) != NewQuantityFromFloat64(3) {
		t.Error("Min mismatch")
	}

	if got := q.Decimal().String(); got != "7.5" {
		t.Errorf("Decimal() = %s, want 7.5", got)
	}
}

func TestMoneyArithmetic(t *testing.T) {
	cost := MustMoney("5.60")
	qty := NewQuantityFromFloat64(25)

	total := cost.Mul(qty.Decimal())
	if total.String() != "140" {
		t.Errorf("total = %s, want 140", total.String())
	}

	avg := total.DivRound(qty.Decimal(), 4)
	if !avg.Equal(MustMoney("5.6")) {
		t.Errorf("avg = %s, want 5.6", avg.String())
	}
}
