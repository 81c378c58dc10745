package main

import (
	"testing"

	"github.com/beeper/cfu-relay/internal/cfu"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    cfu.Version
		wantErr bool
	}{
		{in: "1.0.0", want: cfu.Version{Major: 1}},
		{in: "3.258.4", want: cfu.Version{Major: 3, Minor: 258, Variant: 4}},
		{in: "0x10.0x20.0x30", want: cfu.Version{Major: 0x10, Minor: 0x20, Variant: 0x30}},
		{in: "1.2", wantErr: true},
		{in: "256.0.0", wantErr: true},
		{in: "1.65536.0", wantErr: true},
		{in: "a.b.c", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseVersion(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseVersion(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseVersion(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("parseVersion(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseContentFlags(t *testing.T) {
	got, err := parseContentFlags([]string{"first", " verify", "last"})
	if err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if got != cfu.FlagFirstBlock|cfu.FlagLastBlock|cfu.FlagVerify {
		t.Fatalf("got %s", got)
	}

	if _, err := parseContentFlags([]string{"middle"}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}

func TestOfferFlags(t *testing.T) {
	f := offerFlags{componentID: 0x20, token: 7, version: "2.1.0", infoCode: -1, extendedCode: -1}
	offer, err := f.offer()
	if err != nil {
		t.Fatalf("standard offer: %v", err)
	}
	if offer.Kind != cfu.OfferStandard || offer.Version != (cfu.Version{Major: 2, Minor: 1}) || offer.Token() != 7 {
		t.Fatalf("standard offer: got %+v", offer)
	}

	f.infoCode = 0x01
	offer, err = f.offer()
	if err != nil {
		t.Fatalf("info offer: %v", err)
	}
	if offer.Kind != cfu.OfferInfoOnly || offer.Info.ComponentID != cfu.ComponentIDInfoOnly || offer.InformationCode != 0x01 {
		t.Fatalf("info offer: got %+v", offer)
	}

	f.infoCode = -1
	f.extendedCode = 0x02
	offer, err = f.offer()
	if err != nil {
		t.Fatalf("extended offer: %v", err)
	}
	if offer.Kind != cfu.OfferExtended || offer.Info.ComponentID != cfu.ComponentIDExtended || offer.CommandCode != 0x02 {
		t.Fatalf("extended offer: got %+v", offer)
	}
}
