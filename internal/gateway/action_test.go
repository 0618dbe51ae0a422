package gateway

import (
	"testing"

	"taxibot/internal/domain"
)

func TestParseAction(t *testing.T) {
	cases := []struct {
		data string
		want Action
	}{
		{"order:new", Action{Kind: ActionNewOrder}},
		{"direction:beshariq_toshkent", Action{Kind: ActionSelectDirection, Direction: domain.DirectionBeshariqToshkent}},
		{"seats:3", Action{Kind: ActionChoosePartySize, PartySize: 3}},
		{"confirm:yes", Action{Kind: ActionConfirm, Accepted: true}},
		{"confirm:no", Action{Kind: ActionConfirm, Accepted: false}},
		{"claim:ord-123", Action{Kind: ActionClaim, OrderID: "ord-123"}},
	}
	for _, tc := range cases {
		if got := ParseAction(tc.data); got != tc.want {
			t.Errorf("ParseAction(%q) = %+v, want %+v", tc.data, got, tc.want)
		}
	}
}

func TestParseAction_Unknown(t *testing.T) {
	for _, data := range []string{"", "ha", "yoq", "direction:mars", "seats:abc", "confirm:maybe", "claim:", "accept"} {
		if got := ParseAction(data); got.Kind != ActionUnknown {
			t.Errorf("ParseAction(%q).Kind = %s, want UNKNOWN", data, got.Kind)
		}
	}
}

func TestActionDataRoundTrip(t *testing.T) {
	datas := []string{
		NewOrderData(),
		DirectionData(domain.DirectionToshkentBeshariq),
		PartySizeData(2),
		ConfirmData(true),
		ConfirmData(false),
		ClaimData("ord-9"),
	}
	for _, data := range datas {
		if got := ParseAction(data); got.Kind == ActionUnknown {
			t.Errorf("encoded payload %q did not parse", data)
		}
	}
}
