package offchain

import (
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		MaxMapPairs: 64,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Address is the content address of a block: its BLAKE2b-256 digest.
func Address(block []byte) agreement.ContentAddress {
	return agreement.ContentAddress(blake2b.Sum256(block))
}

// EncodeRecord returns the canonical block of rec and its address.
func EncodeRecord(rec agreement.BountyRecord) ([]byte, agreement.ContentAddress, error) {
	block, err := encMode.Marshal(rec)
	if err != nil {
		return nil, agreement.ContentAddress{}, err
	}
	return block, Address(block), nil
}

// DecodeRecord parses and validates a block.
func DecodeRecord(block []byte) (agreement.BountyRecord, error) {
	var rec agreement.BountyRecord
	if err := decMode.Unmarshal(block, &rec); err != nil {
		return agreement.BountyRecord{}, err
	}
	if err := ValidateRecord(rec); err != nil {
		return agreement.BountyRecord{}, err
	}
	return rec, nil
}

func ValidateRecord(rec agreement.BountyRecord) error {
	switch {
	case rec.RepoOwner == "":
		return ErrInvalidRecord("empty repo owner")
	case rec.RepoName == "":
		return ErrInvalidRecord("empty repo name")
	case rec.IssueNumber == 0:
		return ErrInvalidRecord("zero issue number")
	}
	return nil
}
