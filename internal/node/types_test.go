package node

import "testing"

func TestRatioValidate(t *testing.T) {
	tests := []struct {
		r    Ratio
		want bool
	}{
		{0, true},
		{1, true},
		{0.5, true},
		{-0.01, false},
		{1.01, false},
	}
	for _, tt := range tests {
		err := tt.r.Validate()
		if (err == nil) != tt.want {
			t.Errorf("Ratio(%v).Validate() err=%v, want ok=%v", tt.r, err, tt.want)
		}
	}
}

func TestRoutingHeaderNavigation(t *testing.T) {
	h := RoutingHeader{Hops: []ID{10, 1, 20}, HopIndex: 0}

	cur, ok := h.CurrentHop()
	if !ok || cur != 10 {
		t.Fatalf("CurrentHop() = %v, %v; want 10, true", cur, ok)
	}
	next, ok := h.NextHop()
	if !ok || next != 1 {
		t.Fatalf("NextHop() = %v, %v; want 1, true", next, ok)
	}
	dst, ok := h.Destination()
	if !ok || dst != 20 {
		t.Fatalf("Destination() = %v, %v; want 20, true", dst, ok)
	}

	adv := h.Advanced()
	if adv.HopIndex != 1 {
		t.Fatalf("Advanced().HopIndex = %d, want 1", adv.HopIndex)
	}

	rev := h.Reversed()
	wantHops := []ID{20, 1, 10}
	for i, id := range wantHops {
		if rev.Hops[i] != id {
			t.Fatalf("Reversed().Hops[%d] = %v, want %v", i, rev.Hops[i], id)
		}
	}
	if rev.HopIndex != 2 {
		t.Fatalf("Reversed().HopIndex = %d, want 2 (mirrors HopIndex=0 from the far end)", rev.HopIndex)
	}
}

func TestPayloadDroppable(t *testing.T) {
	frag := Payload{Kind: PayloadMsgFragment}
	if !frag.Droppable() {
		t.Error("MsgFragment should be droppable")
	}
	ack := Payload{Kind: PayloadAck}
	if ack.Droppable() {
		t.Error("Ack should never be droppable")
	}
}

func TestFloodKeyStability(t *testing.T) {
	a := FloodKey(42, 7)
	b := FloodKey(42, 7)
	c := FloodKey(42, 8)
	if a != b {
		t.Error("FloodKey should be deterministic for the same inputs")
	}
	if a == c {
		t.Error("FloodKey should differ across distinct node ids")
	}
}
