package account_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/rainblock/verifier/foundation/blockchain/account"
)

func Test_NewAccountIsEmpty(t *testing.T) {
	acct := account.New(uint256.NewInt(0), uint256.NewInt(100))

	if acct.HasCode() {
		t.Fatalf("Should not have code.")
	}

	if acct.HasStorage() {
		t.Fatalf("Should not have storage.")
	}
}

func Test_RLPRoundTrip(t *testing.T) {
	acct := account.New(uint256.NewInt(7), uint256.NewInt(1_000_000))

	data, err := rlp.EncodeToBytes(&acct)
	if err != nil {
		t.Fatalf("Should be able to RLP encode an account: %s", err)
	}

	var got account.Account
	if err := rlp.DecodeBytes(data, &got); err != nil {
		t.Fatalf("Should be able to RLP decode an account: %s", err)
	}

	if !account.Equal(acct, got) {
		t.Logf("got: %+v", got)
		t.Logf("exp: %+v", acct)
		t.Fatalf("Should get back the same account after a round trip.")
	}
}

func Test_CopyIsIndependent(t *testing.T) {
	acct := account.New(uint256.NewInt(1), uint256.NewInt(1))

	draft := acct.Copy()
	draft.Nonce.AddUint64(draft.Nonce, 1)
	draft.Balance.AddUint64(draft.Balance, 99)

	if acct.Nonce.Uint64() != 1 {
		t.Fatalf("Mutating the copy's nonce should not affect the original.")
	}

	if acct.Balance.Uint64() != 1 {
		t.Fatalf("Mutating the copy's balance should not affect the original.")
	}
}

func Test_EqualDetectsDifference(t *testing.T) {
	a := account.New(uint256.NewInt(1), uint256.NewInt(1))
	b := account.New(uint256.NewInt(2), uint256.NewInt(1))

	if account.Equal(a, b) {
		t.Fatalf("Accounts with different nonces should not be equal.")
	}
}
