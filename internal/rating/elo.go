package rating

import "math"

// K is the Elo K-factor applied to every rated result.
const K = 32

// DefaultElo is the rating new accounts start from.
const DefaultElo = 1200

// Expected returns the expected score of a rated at `a` against `b`.
func Expected(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// Decisive returns the signed deltas for a decided match. Both expectations
// are computed and rounded independently, so the magnitudes may differ by
// one point for unequal ratings.
func Decisive(winnerElo, loserElo int) (winnerDelta, loserDelta int) {
	expWinner := Expected(winnerElo, loserElo)
	expLoser := Expected(loserElo, winnerElo)
	winnerDelta = int(math.Round(K * (1 - expWinner)))
	loserDelta = int(math.Round(K * (0 - expLoser)))
	return winnerDelta, loserDelta
}

// Draw returns the signed deltas for a drawn match. Only the first player's
// expectation is computed; the second player moves by the exact negation.
// This derivation intentionally differs from Decisive and must not be
// unified without changing observed deltas.
func Draw(firstElo, secondElo int) (firstDelta, secondDelta int) {
	e := Expected(firstElo, secondElo)
	d := int(math.Round(K * (0.5 - e)))
	return d, -d
}
