package sim

import "time"

// SeasonalityMultiplier maps a calendar month to the demand multiplier:
// Aug/Sep peak, January sales, early-summer lull.
func SeasonalityMultiplier(month time.Month) float64 {
    switch month {
    case time.August, time.September:
        return 1.8
    case time.January:
        return 1.3
    case time.June, time.July:
        return 0.8
    default:
        return 1.0
    }
}
