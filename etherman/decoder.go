package etherman

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

// Decoder turns bounty contract logs into typed events.
// It holds no state besides the parsed ABI and is safe for concurrent use.
type Decoder struct {
	bountyABI abi.ABI
}

func NewDecoder() (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(BountyABI))
	if err != nil {
		return nil, err
	}
	return &Decoder{bountyABI: parsed}, nil
}

// Decode implements agreement.Decoder.
func (d *Decoder) Decode(raw *agreement.RawEvent, kind agreement.EventKind) (agreement.Event, error) {
	if raw == nil {
		return nil, agreement.ErrDecode(kind, "nil event")
	}
	if raw.Kind != kind {
		return nil, agreement.ErrDecode(kind, "event delivered as %v", raw.Kind)
	}

	name, ok := eventNames[kind]
	if !ok {
		return nil, agreement.ErrDecode(kind, "unknown kind")
	}
	event := d.bountyABI.Events[name]

	if len(raw.Topics) == 0 || raw.Topics[0] != event.ID {
		return nil, agreement.ErrDecode(kind, "unexpected topic0")
	}

	indexed := indexedArgs(event.Inputs)
	if len(raw.Topics)-1 != len(indexed) {
		return nil, agreement.ErrDecode(kind, "want %d indexed topics, got %d", len(indexed), len(raw.Topics)-1)
	}

	fields := make(map[string]interface{})
	if err := abi.ParseTopicsIntoMap(fields, indexed, raw.Topics[1:]); err != nil {
		return nil, agreement.ErrDecode(kind, "topics: %v", err)
	}
	if err := d.bountyABI.UnpackIntoMap(fields, name, raw.Data); err != nil {
		return nil, agreement.ErrDecode(kind, "data: %v", err)
	}

	f := fieldReader{kind: kind, fields: fields}
	var ev agreement.Event
	switch kind {
	case agreement.BountyPosted:
		ev = &agreement.BountyPostedEvent{
			ID:             f.getUint64("id"),
			Amount:         f.getBigInt("amount"),
			DescriptionRef: f.getBytes32("description"),
		}
	case agreement.ContributionRaised:
		ev = &agreement.ContributionRaisedEvent{
			BountyID:  f.getUint64("bountyId"),
			Amount:    f.getBigInt("amount"),
			Total:     f.getBigInt("total"),
			BountyRef: f.getBytes32("bountyRef"),
		}
	case agreement.SubmissionPosted:
		ev = &agreement.SubmissionPostedEvent{
			ID:            f.getUint64("id"),
			BountyID:      f.getUint64("bountyId"),
			Amount:        f.getBigInt("amount"),
			BountyRef:     f.getBytes32("bountyRef"),
			SubmissionRef: f.getBytes32("submissionRef"),
		}
	case agreement.PaymentExecuted:
		ev = &agreement.PaymentExecutedEvent{
			SubmissionID:  f.getUint64("submissionId"),
			BountyID:      f.getUint64("bountyId"),
			Amount:        f.getBigInt("amount"),
			NewTotal:      f.getBigInt("newTotal"),
			BountyRef:     f.getBytes32("bountyRef"),
			SubmissionRef: f.getBytes32("submissionRef"),
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return ev, nil
}

func indexedArgs(args abi.Arguments) abi.Arguments {
	var indexed abi.Arguments
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

// fieldReader pulls typed values out of an unpacked field map and keeps
// the first type mismatch.
type fieldReader struct {
	kind   agreement.EventKind
	fields map[string]interface{}
	err    error
}

func (f *fieldReader) fail(name string) {
	if f.err == nil {
		f.err = agreement.ErrDecode(f.kind, "field %q has type %T", name, f.fields[name])
	}
}

func (f *fieldReader) getUint64(name string) uint64 {
	v, ok := f.fields[name].(uint64)
	if !ok {
		f.fail(name)
	}
	return v
}

func (f *fieldReader) getBigInt(name string) *big.Int {
	v, ok := f.fields[name].(*big.Int)
	if !ok || v == nil {
		f.fail(name)
		return nil
	}
	return new(big.Int).Set(v)
}

func (f *fieldReader) getBytes32(name string) ethcommon.Hash {
	v, ok := f.fields[name].([32]byte)
	if !ok {
		f.fail(name)
	}
	return ethcommon.Hash(v)
}
