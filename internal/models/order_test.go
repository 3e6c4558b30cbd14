package models

import "testing"

func TestIsMirrorStatus(t *testing.T) {
	for _, s := range MirrorStatuses {
		if !IsMirrorStatus(s) {
			t.Errorf("IsMirrorStatus(%q) = false", s)
		}
	}
	for _, s := range []string{"", "shipped", "PAID", "UNKNOWN(42)"} {
		if IsMirrorStatus(s) {
			t.Errorf("IsMirrorStatus(%q) = true", s)
		}
	}
}

func TestCanShip(t *testing.T) {
	tests := []struct {
		from string
		want bool
	}{
		{OrderStatusAwaitingDelivery, true},
		{OrderStatusAwaitingPayment, false},
		{OrderStatusShipped, false},
		{OrderStatusInDelivery, false},
		{OrderStatusComplete, false},
		{OrderStatusCanceled, false},
	}
	for _, tt := range tests {
		if got := CanShip(tt.from); got != tt.want {
			t.Errorf("CanShip(%s) = %v, want %v", tt.from, got, tt.want)
		}
	}
}

func TestCanCancel(t *testing.T) {
	tests := []struct {
		from string
		want bool
	}{
		{OrderStatusAwaitingPayment, true},
		{OrderStatusAwaitingDelivery, true},
		{OrderStatusShipped, false},
		{OrderStatusInDelivery, false},
		{OrderStatusDelivered, false},
		{OrderStatusComplete, false},
		{OrderStatusCanceled, false},
	}
	for _, tt := range tests {
		if got := CanCancel(tt.from); got != tt.want {
			t.Errorf("CanCancel(%s) = %v, want %v", tt.from, got, tt.want)
		}
	}
}

func TestNormalizeWallet(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"0xABCDef0123", "0xabcdef0123"},
		{"  0xAbc  ", "0xabc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeWallet(tt.in); got != tt.want {
			t.Errorf("NormalizeWallet(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
