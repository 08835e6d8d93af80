package gamification

import "math"

// XPForLevel is the total XP at which level n is left behind.
func XPForLevel(n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Floor(100 * math.Pow(float64(n), 1.5)))
}

// LevelProgress returns total minus the threshold of the previous level.
func LevelProgress(total, level int) int {
	if level <= 1 {
		return total
	}
	return total - XPForLevel(level-1)
}

// newXP is the row of a user who has never earned anything.
func newXP(userID string) XP {
	return XP{UserID: userID, TotalXP: 0, Level: 1, XPToNextLevel: XPForLevel(1)}
}

// apply adds amount to x, levelling up while the threshold is crossed.
func apply(x XP, amount int) (XP, int) {
	x.TotalXP += amount
	gained := 0
	for x.TotalXP >= x.XPToNextLevel {
		x.Level++
		x.XPToNextLevel = XPForLevel(x.Level)
		gained++
	}
	return x, gained
}
