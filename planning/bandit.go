package planning

import "math"

// bandit is the UCB1 arm selector driving queue choice across one plan's
// four open sets. It holds no state beyond a single plan invocation: a
// fresh bandit is constructed per planOne call.
type bandit struct {
	pulls       [4]int
	rewardSum   [4]float64
	totalPulls  int
	ucbC        float64
	anchorEvery int
}

func newBandit(ucbC float64, anchorEvery int) *bandit {
	return &bandit{ucbC: ucbC, anchorEvery: anchorEvery}
}

// selectQueue picks which of the four queues to pop from at expansionIdx,
// given which queues are currently empty: forced anchor cadence first,
// then restriction to non-empty queues, cold start, and UCB1 among the
// rest.
func (b *bandit) selectQueue(empty [4]bool, expansionIdx int) int {
	if b.anchorEvery > 0 && expansionIdx%b.anchorEvery == 0 && !empty[0] {
		return 0
	}

	var avail []int
	for i := 0; i < 4; i++ {
		if !empty[i] {
			avail = append(avail, i)
		}
	}
	if len(avail) == 0 {
		return 0
	}

	for _, i := range avail {
		if b.pulls[i] == 0 {
			return i
		}
	}

	best := avail[0]
	bestScore := math.Inf(-1)
	logTotal := math.Log(math.Max(1, float64(b.totalPulls)))
	for _, i := range avail {
		mean := b.rewardSum[i] / float64(b.pulls[i])
		bonus := b.ucbC * math.Sqrt(logTotal/float64(b.pulls[i]))
		score := mean + bonus
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}

// recordPull updates the arm statistics after an expansion from queue k
// with progress reward r.
func (b *bandit) recordPull(k int, r float64) {
	b.pulls[k]++
	b.totalPulls++
	b.rewardSum[k] += r
}
