package endpoint

import (
	"net"
	"testing"
	"time"
)

func fixedInterfaces(ips ...string) Interfaces {
	return func() ([]net.IP, error) {
		out := make([]net.IP, len(ips))
		for i, s := range ips {
			out[i] = net.ParseIP(s)
		}
		return out, nil
	}
}

func TestResolveUsesAdvertisedPublicIP(t *testing.T) {
	prefs := Preferences{AdvertisedIP: net.ParseIP("8.8.8.8"), ListenPort: 30303}
	res := Resolve(prefs, fixedInterfaces(), time.Millisecond)
	if !res.Public.Equal(net.ParseIP("8.8.8.8")) {
		t.Fatalf("got %v, want advertised IP", res.Public)
	}
}

func TestResolveRejectsPrivateAdvertisedIPWithoutLocalAllowed(t *testing.T) {
	prefs := Preferences{AdvertisedIP: net.ParseIP("10.0.0.5"), ListenPort: 30303}
	res := Resolve(prefs, fixedInterfaces("8.8.8.8"), time.Millisecond)
	if !res.Public.Equal(net.ParseIP("8.8.8.8")) {
		t.Fatalf("expected fallback to public interface address, got %v", res.Public)
	}
}

func TestResolveFallsBackToPrivateWhenAllowed(t *testing.T) {
	prefs := Preferences{ListenPort: 30303, LocalNetworkingAllowed: true}
	res := Resolve(prefs, fixedInterfaces("10.0.0.5"), time.Millisecond)
	if !res.Public.Equal(net.ParseIP("10.0.0.5")) {
		t.Fatalf("got %v, want private fallback", res.Public)
	}
}

func TestResolveUnspecifiedWhenNothingEligible(t *testing.T) {
	prefs := Preferences{ListenPort: 30303}
	res := Resolve(prefs, fixedInterfaces("10.0.0.5"), time.Millisecond)
	if !res.Public.Equal(net.IPv4zero) {
		t.Fatalf("got %v, want unspecified", res.Public)
	}
}
