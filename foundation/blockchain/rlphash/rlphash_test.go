package rlphash_test

import (
	"testing"

	"github.com/rainblock/verifier/foundation/blockchain/rlphash"
)

func Test_HashIsDeterministic(t *testing.T) {
	value := struct {
		Name string
		Age  uint64
	}{
		Name: "Bill",
		Age:  42,
	}

	h1, err := rlphash.Hash(value)
	if err != nil {
		t.Fatalf("Should be able to hash a value: %s", err)
	}

	h2, err := rlphash.Hash(value)
	if err != nil {
		t.Fatalf("Should be able to hash a value: %s", err)
	}

	if h1 != h2 {
		t.Fatalf("Hashing the same value twice should produce the same digest.")
	}
}

func Test_HashDetectsDifference(t *testing.T) {
	v1 := struct{ Name string }{Name: "Bill"}
	v2 := struct{ Name string }{Name: "Jill"}

	h1, err := rlphash.Hash(v1)
	if err != nil {
		t.Fatalf("Should be able to hash a value: %s", err)
	}

	h2, err := rlphash.Hash(v2)
	if err != nil {
		t.Fatalf("Should be able to hash a value: %s", err)
	}

	if h1 == h2 {
		t.Fatalf("Different values should hash differently.")
	}
}

func Test_BytesMatchesKnownDigest(t *testing.T) {
	h := rlphash.Bytes(nil)
	const emptyKeccak = "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"

	if h.Hex() != emptyKeccak {
		t.Logf("got: %s", h.Hex())
		t.Logf("exp: %s", emptyKeccak)
		t.Fatalf("Keccak256 of empty input should match the well known digest.")
	}
}
