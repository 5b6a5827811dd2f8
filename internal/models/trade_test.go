package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{TradeStatusPendingFunding, TradeStatusFunded, true},
		{TradeStatusFunded, TradeStatusActive, true},
		{TradeStatusActive, TradeStatusCompleted, true},

		// Deadlines
		{TradeStatusPendingFunding, TradeStatusExpired, true},
		{TradeStatusFunded, TradeStatusDisputed, true},
		{TradeStatusActive, TradeStatusDisputed, true},

		// Dispute resolution
		{TradeStatusDisputed, TradeStatusResolvedRelease, true},
		{TradeStatusDisputed, TradeStatusResolvedRefund, true},

		// Cancellation only before funding
		{TradeStatusPendingFunding, TradeStatusCancelled, true},
		{TradeStatusFunded, TradeStatusCancelled, false},
		{TradeStatusActive, TradeStatusCancelled, false},
		{TradeStatusDisputed, TradeStatusCancelled, false},

		// Funded escrow never silently expires
		{TradeStatusFunded, TradeStatusExpired, false},
		{TradeStatusActive, TradeStatusExpired, false},

		// No regressions or resurrection
		{TradeStatusFunded, TradeStatusPendingFunding, false},
		{TradeStatusCompleted, TradeStatusDisputed, false},
		{TradeStatusExpired, TradeStatusFunded, false},
		{TradeStatusCancelled, TradeStatusFunded, false},
		{TradeStatusResolvedRefund, TradeStatusCompleted, false},
		{TradeStatusPendingFunding, TradeStatusCompleted, false},
		{TradeStatusPendingFunding, TradeStatusActive, false},
		{"nonexistent", TradeStatusFunded, false},
		{TradeStatusFunded, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := []string{
		TradeStatusCompleted, TradeStatusResolvedRelease, TradeStatusResolvedRefund,
		TradeStatusExpired, TradeStatusCancelled,
	}
	for _, status := range terminal {
		if !IsTerminalStatus(status) {
			t.Errorf("status %q should be terminal", status)
		}
		if len(ValidTradeTransitions[status]) != 0 {
			t.Errorf("terminal status %q should have no transitions", status)
		}
	}

	for _, status := range []string{TradeStatusPendingFunding, TradeStatusFunded, TradeStatusActive, TradeStatusDisputed} {
		if IsTerminalStatus(status) {
			t.Errorf("status %q should not be terminal", status)
		}
	}
}

func TestReviewableStatuses(t *testing.T) {
	reviewable := map[string]bool{
		TradeStatusCompleted:       true,
		TradeStatusResolvedRelease: true,
		TradeStatusResolvedRefund:  true,
		TradeStatusExpired:         false,
		TradeStatusCancelled:       false,
		TradeStatusPendingFunding:  false,
		TradeStatusFunded:          false,
		TradeStatusActive:          false,
		TradeStatusDisputed:        false,
	}
	for status, want := range reviewable {
		if got := IsReviewableStatus(status); got != want {
			t.Errorf("IsReviewableStatus(%q) = %v, want %v", status, got, want)
		}
	}
}

func TestCounterparty(t *testing.T) {
	buyer := uuid.New()
	seller := uuid.New()
	stranger := uuid.New()
	tr := &Trade{BuyerUserID: buyer, SellerUserID: seller}

	if got, ok := tr.Counterparty(buyer); !ok || got != seller {
		t.Errorf("Counterparty(buyer) = %v, %v", got, ok)
	}
	if got, ok := tr.Counterparty(seller); !ok || got != buyer {
		t.Errorf("Counterparty(seller) = %v, %v", got, ok)
	}
	if _, ok := tr.Counterparty(stranger); ok {
		t.Error("Counterparty(stranger) should not resolve")
	}
	if tr.IsParticipant(stranger) {
		t.Error("stranger should not be a participant")
	}
}

func TestOutstandingUnits(t *testing.T) {
	tr := &Trade{AmountUnits: 100, FundedUnits: 0}
	if got := tr.OutstandingUnits(); got != 100 {
		t.Errorf("outstanding = %d, want 100", got)
	}
	tr.FundedUnits = 60
	if got := tr.OutstandingUnits(); got != 40 {
		t.Errorf("outstanding = %d, want 40", got)
	}
	// Overfunded trades owe nothing.
	tr.FundedUnits = 110
	if got := tr.OutstandingUnits(); got != 0 {
		t.Errorf("outstanding = %d, want 0", got)
	}
}

func TestOverdueTransition(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name       string
		status     string
		funding    time.Time
		deadline   time.Time
		wantTarget string
		wantOK     bool
	}{
		{"pending not overdue", TradeStatusPendingFunding, future, future, "", false},
		{"pending overdue expires", TradeStatusPendingFunding, past, future, TradeStatusExpired, true},
		{"funded overdue escalates", TradeStatusFunded, past, past, TradeStatusDisputed, true},
		{"active overdue escalates", TradeStatusActive, past, past, TradeStatusDisputed, true},
		{"funded not overdue", TradeStatusFunded, past, future, "", false},
		{"disputed never auto-moves", TradeStatusDisputed, past, past, "", false},
		{"completed never auto-moves", TradeStatusCompleted, past, past, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &Trade{Status: tt.status, FundingDeadline: tt.funding, TradeDeadline: tt.deadline}
			target, event, ok := tr.OverdueTransition(now)
			if ok != tt.wantOK || target != tt.wantTarget {
				t.Errorf("OverdueTransition = (%q, %q, %v), want (%q, _, %v)", target, event, ok, tt.wantTarget, tt.wantOK)
			}
			if ok && !IsValidTransition(tt.status, target) {
				t.Errorf("overdue target %q not reachable from %q", target, tt.status)
			}
		})
	}
}
