package domain

import (
	"testing"
	"time"
)

func TestCertificateTransitionAllowed(t *testing.T) {
	cases := []struct {
		from, to CertificateStatus
		want     bool
	}{
		{CertStatusDraft, CertStatusGenerated, true},
		{CertStatusDraft, CertStatusIssued, false},
		{CertStatusGenerated, CertStatusIssued, true},
		{CertStatusGenerated, CertStatusRevoked, true},
		{CertStatusGenerated, CertStatusExpired, false},
		{CertStatusIssued, CertStatusRevoked, true},
		{CertStatusIssued, CertStatusExpired, true},
		{CertStatusIssued, CertStatusGenerated, false},
		{CertStatusRevoked, CertStatusIssued, false},
		{CertStatusRevoked, CertStatusExpired, false},
		{CertStatusExpired, CertStatusIssued, false},
		{CertStatusExpired, CertStatusRevoked, false},
	}
	for _, tc := range cases {
		if got := CertificateTransitionAllowed(tc.from, tc.to); got != tc.want {
			t.Errorf("CertificateTransitionAllowed(%s, %s) = %t, want %t", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestValidRevocationReason(t *testing.T) {
	valid := []RevocationReason{
		RevocationSuperseded,
		RevocationCompromised,
		RevocationCessation,
		RevocationPrivilegeWithdrawn,
		RevocationCACompromise,
	}
	for _, reason := range valid {
		if !ValidRevocationReason(reason) {
			t.Errorf("expected %q to be a valid revocation reason", reason)
		}
	}
	if ValidRevocationReason("changed_my_mind") {
		t.Fatalf("free-text revocation reasons must be rejected")
	}
	if ValidRevocationReason("") {
		t.Fatalf("empty revocation reason must be rejected")
	}
}

func TestDeriveMetadata(t *testing.T) {
	devices := []DeviceSnapshot{
		{DeviceID: "a", Verified: true},
		{DeviceID: "b", Verified: true},
		{DeviceID: "c", Verified: false},
	}
	meta := DeriveMetadata(devices)
	if meta.TotalDevices != 3 || meta.SuccessfulWipes != 2 || meta.FailedWipes != 1 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if meta.SuccessfulWipes+meta.FailedWipes != meta.TotalDevices {
		t.Fatalf("counts must sum to total, got %+v", meta)
	}

	empty := DeriveMetadata(nil)
	if empty.TotalDevices != 0 {
		t.Fatalf("expected zero metadata for no devices, got %+v", empty)
	}
}

func TestValidityPeriodContains(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	v := ValidityPeriod{Start: start, End: end}

	if !v.Contains(start) || !v.Contains(end) {
		t.Fatalf("validity bounds are inclusive")
	}
	if !v.Contains(start.AddDate(0, 6, 0)) {
		t.Fatalf("midpoint must be contained")
	}
	if v.Contains(start.Add(-time.Second)) || v.Contains(end.Add(time.Second)) {
		t.Fatalf("instants outside the period must not be contained")
	}
}
