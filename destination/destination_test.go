package destination

import (
	"testing"

	"github.com/nomadnet/reticulum-go/identity"
)

func TestHashDeterministic(t *testing.T) {
	id, err := identity.New()
	if err != nil {
		t.Fatal(err)
	}
	d := New("chat.alpha", Single, id)
	h1 := d.Hash()
	h2 := d.Hash()
	if h1 != h2 {
		t.Fatal("destination hash is not deterministic")
	}
}

func TestHashDependsOnAspectsAndIdentity(t *testing.T) {
	idA, _ := identity.New()
	idB, _ := identity.New()
	dA := New("chat.alpha", Single, idA)
	dB := New("chat.alpha", Single, idB)
	if dA.Hash() == dB.Hash() {
		t.Fatal("destinations with different identities produced the same hash")
	}
	dA2 := New("chat.beta", Single, idA)
	if dA.Hash() == dA2.Hash() {
		t.Fatal("destinations with different aspects produced the same hash")
	}
}

func TestNameHashCaseSensitive(t *testing.T) {
	if NameHash("Chat.Alpha") == NameHash("chat.alpha") {
		t.Fatal("name hash should be case-sensitive: distinct aspect strings must hash differently")
	}
}

func TestHashFromPartsMatches(t *testing.T) {
	id, _ := identity.New()
	d := New("example", Single, id)
	h1 := d.Hash()
	h2 := HashFromParts(d.NameHash(), id.Hash())
	if h1 != h2 {
		t.Fatal("HashFromParts does not match Destination.Hash")
	}
}
