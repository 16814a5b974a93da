package etherman

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sunshine-protocol/bounty-bot/agreement"
)

// BountyABI lists the events of the bounty contract the bot follows.
const BountyABI = `[
	{"anonymous":false,"type":"event","name":"BountyPosted","inputs":[
		{"indexed":true,"name":"id","type":"uint64"},
		{"indexed":false,"name":"amount","type":"uint256"},
		{"indexed":false,"name":"description","type":"bytes32"}]},
	{"anonymous":false,"type":"event","name":"BountyRaiseContribution","inputs":[
		{"indexed":true,"name":"bountyId","type":"uint64"},
		{"indexed":false,"name":"amount","type":"uint256"},
		{"indexed":false,"name":"total","type":"uint256"},
		{"indexed":false,"name":"bountyRef","type":"bytes32"}]},
	{"anonymous":false,"type":"event","name":"BountySubmissionPosted","inputs":[
		{"indexed":true,"name":"id","type":"uint64"},
		{"indexed":true,"name":"bountyId","type":"uint64"},
		{"indexed":false,"name":"amount","type":"uint256"},
		{"indexed":false,"name":"bountyRef","type":"bytes32"},
		{"indexed":false,"name":"submissionRef","type":"bytes32"}]},
	{"anonymous":false,"type":"event","name":"BountyPaymentExecuted","inputs":[
		{"indexed":true,"name":"submissionId","type":"uint64"},
		{"indexed":true,"name":"bountyId","type":"uint64"},
		{"indexed":false,"name":"amount","type":"uint256"},
		{"indexed":false,"name":"newTotal","type":"uint256"},
		{"indexed":false,"name":"bountyRef","type":"bytes32"},
		{"indexed":false,"name":"submissionRef","type":"bytes32"}]}
]`

var (
	// Events
	BountyPostedSignatureHash            = crypto.Keccak256Hash([]byte("BountyPosted(uint64,uint256,bytes32)"))
	BountyRaiseContributionSignatureHash = crypto.Keccak256Hash([]byte("BountyRaiseContribution(uint64,uint256,uint256,bytes32)"))
	BountySubmissionPostedSignatureHash  = crypto.Keccak256Hash([]byte("BountySubmissionPosted(uint64,uint64,uint256,bytes32,bytes32)"))
	BountyPaymentExecutedSignatureHash   = crypto.Keccak256Hash([]byte("BountyPaymentExecuted(uint64,uint64,uint256,uint256,bytes32,bytes32)"))
)

// eventNames maps a kind to its event name in BountyABI.
var eventNames = map[agreement.EventKind]string{
	agreement.BountyPosted:       "BountyPosted",
	agreement.ContributionRaised: "BountyRaiseContribution",
	agreement.SubmissionPosted:   "BountySubmissionPosted",
	agreement.PaymentExecuted:    "BountyPaymentExecuted",
}

// SignatureHash returns topic0 of the event behind kind.
func SignatureHash(kind agreement.EventKind) (common.Hash, bool) {
	switch kind {
	case agreement.BountyPosted:
		return BountyPostedSignatureHash, true
	case agreement.ContributionRaised:
		return BountyRaiseContributionSignatureHash, true
	case agreement.SubmissionPosted:
		return BountySubmissionPostedSignatureHash, true
	case agreement.PaymentExecuted:
		return BountyPaymentExecutedSignatureHash, true
	}
	return common.Hash{}, false
}
