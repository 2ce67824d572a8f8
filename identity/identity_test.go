package identity

import "testing"

func TestLoadGeneratesAndPersists(t *testing.T) {
	store := &MemStore{}
	if _, err := Load(store); err != nil {
		t.Fatalf("Load: %v", err)
	}

	secret, found, err := store.Load()
	if err != nil || !found {
		t.Fatalf("expected the generated secret to have been saved: found=%v err=%v", found, err)
	}
	if isZero(secret) {
		t.Fatal("persisted secret is zero")
	}
}

func TestLoadRejectsZeroSecret(t *testing.T) {
	store := &MemStore{secret: [SecretLen]byte{}, set: true}
	if _, err := Load(store); err == nil {
		t.Fatal("expected an error loading a zero-valued secret")
	}
}

func TestLoadReusesExistingSecret(t *testing.T) {
	store := &MemStore{}
	first, err := Load(store)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := Load(store)
	if err != nil {
		t.Fatalf("Load (again): %v", err)
	}
	if first.NodeID() != second.NodeID() {
		t.Fatal("expected the same identity across two loads of the same store")
	}
}
