package peer

import (
	"net"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	secret := [32]byte{1, 2, 3}
	records := []Record{
		{
			IP:             net.ParseIP("203.0.113.5").To4(),
			TCPPort:        30303,
			NodeID:         ID{9, 9, 9},
			Trusted:        true,
			LastConnected:  time.Unix(1700000000, 0),
			LastAttempted:  time.Unix(1700000001, 0),
			FailedAttempts: 2,
			LastDisconnect: PingTimeout,
			Score:          42,
			Rating:         -3,
		},
	}

	data := Encode(secret, records)
	gotSecret, gotRecords, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotSecret != secret {
		t.Fatalf("secret mismatch: got %x, want %x", gotSecret, secret)
	}
	if len(gotRecords) != 1 {
		t.Fatalf("expected 1 record, got %d", len(gotRecords))
	}
	got := gotRecords[0]
	want := records[0]
	if !got.IP.Equal(want.IP) || got.TCPPort != want.TCPPort || got.NodeID != want.NodeID ||
		got.Trusted != want.Trusted || !got.LastConnected.Equal(want.LastConnected) ||
		got.FailedAttempts != want.FailedAttempts || got.LastDisconnect != want.LastDisconnect ||
		got.Score != want.Score || got.Rating != want.Rating {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	data := Encode([32]byte{}, nil)
	data[0] = 7
	if _, _, err := Decode(data); err == nil {
		t.Fatal("expected error for unsupported persist version")
	}
}

func TestShouldSaveSelectionRules(t *testing.T) {
	self := ID{1}
	other := ID{2}
	now := time.Now()
	isPrivate := func(ip net.IP) bool { return ip.IsPrivate() }

	recentPublic := Node{ID: other, TCP: Endpoint{IP: net.ParseIP("203.0.113.5"), Port: 30303}}
	if !ShouldSave(recentPublic, Stats{LastConnected: now.Add(-time.Hour)}, self, now, isPrivate) {
		t.Error("expected recent public peer to be saved")
	}

	stale := Node{ID: other, TCP: Endpoint{IP: net.ParseIP("203.0.113.5"), Port: 30303}}
	if ShouldSave(stale, Stats{LastConnected: now.Add(-72 * time.Hour)}, self, now, isPrivate) {
		t.Error("expected stale peer to be excluded")
	}

	private := Node{ID: other, TCP: Endpoint{IP: net.ParseIP("10.0.0.1"), Port: 30303}}
	if ShouldSave(private, Stats{LastConnected: now.Add(-time.Minute)}, self, now, isPrivate) {
		t.Error("expected private peer to be excluded")
	}

	ephemeralPort := Node{ID: other, TCP: Endpoint{IP: net.ParseIP("203.0.113.5"), Port: 40000}}
	if ShouldSave(ephemeralPort, Stats{LastConnected: now.Add(-time.Minute)}, self, now, isPrivate) {
		t.Error("expected ephemeral-port peer to be excluded")
	}

	selfNode := Node{ID: self, TCP: Endpoint{IP: net.ParseIP("203.0.113.5"), Port: 30303}}
	if ShouldSave(selfNode, Stats{LastConnected: now.Add(-time.Minute)}, self, now, isPrivate) {
		t.Error("expected self to be excluded")
	}
}
