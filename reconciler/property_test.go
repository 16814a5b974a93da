package reconciler

import (
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

func genRecord() gopter.Gen {
	return gopter.CombineGens(
		gen.Identifier(),
		gen.Identifier(),
		gen.UInt64Range(1, 1<<40),
	).Map(func(values []interface{}) agreement.BountyRecord {
		return agreement.BountyRecord{
			RepoOwner:   values[0].(string),
			RepoName:    values[1].(string),
			IssueNumber: values[2].(uint64),
		}
	})
}

// TestBountyPostedProperty: a resolvable BountyPosted yields exactly one
// CreateBountyComment carrying the event's amount and id.
func TestBountyPostedProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("one create per posting", prop.ForAll(
		func(id uint64, amount int64, seed uint64, rec agreement.BountyRecord) bool {
			ref := ethcommon.BigToHash(new(big.Int).SetUint64(seed))
			ev := &agreement.BountyPostedEvent{ID: id, Amount: big.NewInt(amount), DescriptionRef: ref}

			intents, err := Reconcile(ev, agreement.ResolvedDocs{ref: rec})
			if err != nil || len(intents) != 1 {
				return false
			}
			create, ok := intents[0].(*agreement.CreateBountyComment)
			return ok &&
				create.BountyID == id &&
				create.Amount.Int64() == amount &&
				create.Issue == rec
		},
		gen.UInt64(),
		gen.Int64Range(0, 1<<62),
		gen.UInt64(),
		genRecord(),
	))

	properties.TestingRun(t)
}

// TestPaymentExecutedProperty: approval always precedes the total update and
// both carry the event's new total.
func TestPaymentExecutedProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("approve then update", prop.ForAll(
		func(submissionID, bountyID uint64, amount, newTotal int64, bounty, submission agreement.BountyRecord) bool {
			bountyRef := ethcommon.HexToHash("0x01")
			submissionRef := ethcommon.HexToHash("0x02")
			ev := &agreement.PaymentExecutedEvent{
				SubmissionID:  submissionID,
				BountyID:      bountyID,
				Amount:        big.NewInt(amount),
				NewTotal:      big.NewInt(newTotal),
				BountyRef:     bountyRef,
				SubmissionRef: submissionRef,
			}

			intents, err := Reconcile(ev, agreement.ResolvedDocs{bountyRef: bounty, submissionRef: submission})
			if err != nil || len(intents) != 2 {
				return false
			}
			approve, ok := intents[0].(*agreement.ApproveSubmissionComment)
			if !ok {
				return false
			}
			update, ok := intents[1].(*agreement.UpdateBountyComment)
			if !ok {
				return false
			}
			return approve.SubmissionID == submissionID &&
				approve.Submission == submission &&
				approve.NewTotal.Int64() == newTotal &&
				update.BountyID == bountyID &&
				update.Issue == bounty &&
				update.NewTotal.Int64() == newTotal
		},
		gen.UInt64(),
		gen.UInt64(),
		gen.Int64Range(0, 1<<62),
		gen.Int64Range(0, 1<<62),
		genRecord(),
		genRecord(),
	))

	properties.TestingRun(t)
}

// TestReconcileDeterministic: the same event and documents give equal intents.
func TestReconcileDeterministic(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("deterministic", prop.ForAll(
		func(bountyID uint64, total int64, rec agreement.BountyRecord) bool {
			ref := ethcommon.HexToHash("0x0a")
			ev := &agreement.ContributionRaisedEvent{BountyID: bountyID, Amount: big.NewInt(1), Total: big.NewInt(total), BountyRef: ref}
			docs := agreement.ResolvedDocs{ref: rec}

			a, errA := Reconcile(ev, docs)
			b, errB := Reconcile(ev, docs)
			if errA != nil || errB != nil || len(a) != len(b) {
				return false
			}
			ua := a[0].(*agreement.UpdateBountyComment)
			ub := b[0].(*agreement.UpdateBountyComment)
			return ua.Target() == ub.Target() && ua.NewTotal.Cmp(ub.NewTotal) == 0
		},
		gen.UInt64(),
		gen.Int64Range(0, 1<<62),
		genRecord(),
	))

	properties.TestingRun(t)
}
