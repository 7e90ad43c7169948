// Package rpc holds the transport-independent decode/validate logic
// behind §4.3's verifier RPC surface (C4): handshake, submit
// transaction, and the three advertise streams. It does not speak
// gRPC or HTTP itself — a transport binds these functions to whatever
// wire framing it uses, generating a fresh reply handle per submitted
// transaction via uuid.
package rpc

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/rainblock/verifier/foundation/blockchain/block"
	"github.com/rainblock/verifier/foundation/blockchain/learner"
	"github.com/rainblock/verifier/foundation/blockchain/peer"
	"github.com/rainblock/verifier/foundation/blockchain/txqueue"
)

// ProtocolVersion is the verifier-to-verifier and client-to-verifier
// wire protocol version this build understands.
const ProtocolVersion = 1

// Version identifies this verifier build, reported over handshake.
const Version = "rainblock-verifier/0.1"

// HandshakeReply is what Handshake returns: §6's
// VerifierVerifierHandshakeMessage fields.
type HandshakeReply struct {
	ProtocolVersion uint32
	Version         string
	Beneficiary     common.Address
}

// Handshake answers a peer's handshake with this verifier's protocol
// version, build version, and configured beneficiary.
func Handshake(beneficiary common.Address) HandshakeReply {
	return HandshakeReply{
		ProtocolVersion: ProtocolVersion,
		Version:         Version,
		Beneficiary:     beneficiary,
	}
}

// SubmitResult is what DecodeSubmitTransaction returns for immediate,
// synchronous reply — the caller still owns enqueueing tx into C6's
// queue, since only it knows whether enqueue itself succeeded.
type SubmitResult struct {
	Tx   txqueue.Transaction
	Code txqueue.ErrorCode
}

// DecodeSubmitTransaction implements §4.3's submit-transaction
// contract: decode the tx, compute its hash, resolve every witness
// into the per-tx proof map keyed by hash, and assign a fresh reply
// handle. Any decode or structural failure is reported as INVALID —
// the caller must reply synchronously and drop the transaction rather
// than enqueue it, per §4.3 and §7's DecodeError policy.
func DecodeSubmitTransaction(txBinary []byte, witnesses [][]byte) SubmitResult {
	tx, err := txqueue.Decode(txBinary, witnesses, uuid.NewString())
	if err != nil {
		return SubmitResult{Code: txqueue.Invalid}
	}

	return SubmitResult{Tx: tx, Code: txqueue.Success}
}

// DecodeAdvertiseNode implements §4.3's streaming advertise-node
// contract: hash the inbound node and record it with the learner.
func DecodeAdvertiseNode(lrn *learner.Learner, raw []byte) {
	hash := crypto.Keccak256Hash(raw)
	lrn.LearnNode(hash, raw)
}

// DecodeAdvertiseBlock implements §4.3's streaming advertise-block
// contract: decode the wire bytes and hand the result to the learner,
// keyed by its header's block number.
func DecodeAdvertiseBlock(lrn *learner.Learner, raw []byte) error {
	blk, err := block.Decode(raw)
	if err != nil {
		return fmt.Errorf("rpc: decode advertised block: %w", err)
	}

	lrn.LearnBlock(blk.Header.Number, blk)
	return nil
}

// AdvertiseNeighbor implements §4.3's "accepted but otherwise
// unspecified" contract: the advertised peer is added to the known
// set so future proposals fan out to it too.
func AdvertiseNeighbor(peers *peer.Set, host string) {
	peers.Add(peer.New(host))
}
