package chain

import (
	"encoding/hex"
	"reflect"
	"testing"
)

func TestDecodeAddressWord(t *testing.T) {
	impl := "5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f"
	word := make([]byte, 32)
	raw, err := hex.DecodeString(impl)
	if err != nil {
		t.Fatal(err)
	}
	copy(word[12:], raw)

	if got := DecodeAddressWord(word); got != "0x"+impl {
		t.Errorf("DecodeAddressWord = %q, want 0x%s", got, impl)
	}
	if got := DecodeAddressWord(make([]byte, 32)); got != "" {
		t.Errorf("zero word should decode empty, got %q", got)
	}
	if got := DecodeAddressWord([]byte{0x01}); got != "" {
		t.Errorf("short word should decode empty, got %q", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Add(&Client{name: "ethereum"})
	r.Add(&Client{name: "base"})

	if _, ok := r.Get("Ethereum"); !ok {
		t.Error("lookup should be case-insensitive")
	}
	if _, ok := r.Get("solana"); ok {
		t.Error("unexpected client for unregistered chain")
	}
	if names := r.Names(); !reflect.DeepEqual(names, []string{"base", "ethereum"}) {
		t.Errorf("Names = %v", names)
	}
}
