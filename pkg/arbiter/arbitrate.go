package arbiter

// ReasonAllow is reported when no finding was produced.
const ReasonAllow = "Allow: No violations detected."

// Arbitrate resolves findings with Most Restrictive Wins: the finding with
// the highest action priority wins and ties go to the first one seen. The
// returned finding is nil when findings is empty.
func Arbitrate(findings []Finding) (bool, *Finding) {
	if len(findings) == 0 {
		return false, nil
	}
	winner := 0
	for i := 1; i < len(findings); i++ {
		if findings[i].Action.Priority() > findings[winner].Action.Priority() {
			winner = i
		}
	}
	w := findings[winner]
	return w.Action == ActionBlock, &w
}
