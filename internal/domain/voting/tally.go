package voting

import "time"

// Tally aggregates cast votes into a result. It is a pure computation: it
// never mutates votes and, for a fixed vote set, always produces the same
// result (the caller supplies the timestamp).
//
// Simple votings pass when for-weight exceeds against-weight; a tie is
// rejected. Legal votings additionally require the participating weight
// (sum of frozen area shares) to reach the quorum threshold; a failed quorum
// and a failed majority are reported as distinct reasons.
func Tally(v *Voting, votes []Vote, now time.Time) Result {
	result := Result{TalliedAt: now}

	for _, vote := range votes {
		switch vote.Choice {
		case ChoiceFor:
			result.For += vote.Weight
		case ChoiceAgainst:
			result.Against += vote.Weight
		case ChoiceAbstain:
			result.Abstain += vote.Weight
		}
		result.Participating += vote.Weight
	}

	if v.Type == TypeLegal && result.Participating < v.QuorumThreshold {
		result.QuorumMet = false
		result.Outcome = OutcomeRejected
		result.Reason = ReasonQuorumNotMet
		return result
	}

	result.QuorumMet = true
	if result.For > result.Against {
		result.Outcome = OutcomePassed
		return result
	}

	result.Outcome = OutcomeRejected
	result.Reason = ReasonMajorityNotReached
	return result
}
