// Package reconciler projects decoded bounty events onto the comments the
// issue tracker should show. It is pure: no I/O, no state.
package reconciler

import (
	"github.com/sunshine-protocol/bounty-bot/agreement"
	"github.com/sunshine-protocol/bounty-bot/common"
)

// Reconcile returns the intents that bring the tracker in line with ev.
// docs must hold every address in ev.Refs().
//
// PaymentExecuted yields the approval before the total update, so a reduced
// total never shows up without the approval that explains it.
func Reconcile(ev agreement.Event, docs agreement.ResolvedDocs) ([]agreement.MutationIntent, error) {
	switch ev := ev.(type) {
	case *agreement.BountyPostedEvent:
		issue, err := lookup(ev.Kind(), docs, ev.DescriptionRef)
		if err != nil {
			return nil, err
		}
		return []agreement.MutationIntent{
			&agreement.CreateBountyComment{
				Issue:    issue,
				BountyID: ev.ID,
				Amount:   common.BigIntClone(ev.Amount),
			},
		}, nil

	case *agreement.ContributionRaisedEvent:
		issue, err := lookup(ev.Kind(), docs, ev.BountyRef)
		if err != nil {
			return nil, err
		}
		return []agreement.MutationIntent{
			&agreement.UpdateBountyComment{
				Issue:    issue,
				BountyID: ev.BountyID,
				NewTotal: common.BigIntClone(ev.Total),
			},
		}, nil

	case *agreement.SubmissionPostedEvent:
		bounty, err := lookup(ev.Kind(), docs, ev.BountyRef)
		if err != nil {
			return nil, err
		}
		submission, err := lookup(ev.Kind(), docs, ev.SubmissionRef)
		if err != nil {
			return nil, err
		}
		return []agreement.MutationIntent{
			&agreement.CreateSubmissionComment{
				Bounty:       bounty,
				Submission:   submission,
				BountyID:     ev.BountyID,
				SubmissionID: ev.ID,
				Amount:       common.BigIntClone(ev.Amount),
			},
		}, nil

	case *agreement.PaymentExecutedEvent:
		bounty, err := lookup(ev.Kind(), docs, ev.BountyRef)
		if err != nil {
			return nil, err
		}
		submission, err := lookup(ev.Kind(), docs, ev.SubmissionRef)
		if err != nil {
			return nil, err
		}
		return []agreement.MutationIntent{
			&agreement.ApproveSubmissionComment{
				Bounty:       bounty,
				Submission:   submission,
				BountyID:     ev.BountyID,
				SubmissionID: ev.SubmissionID,
				Amount:       common.BigIntClone(ev.Amount),
				NewTotal:     common.BigIntClone(ev.NewTotal),
			},
			&agreement.UpdateBountyComment{
				Issue:    bounty,
				BountyID: ev.BountyID,
				NewTotal: common.BigIntClone(ev.NewTotal),
			},
		}, nil
	}

	return nil, ErrUnknownEvent(ev)
}

func lookup(kind agreement.EventKind, docs agreement.ResolvedDocs, addr agreement.ContentAddress) (agreement.BountyRecord, error) {
	rec, ok := docs[addr]
	if !ok {
		return agreement.BountyRecord{}, ErrMissingRef(kind, addr)
	}
	return rec, nil
}
