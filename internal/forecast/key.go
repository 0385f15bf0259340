package forecast

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// Fingerprint derives the cache key of a request. The baseline is rounded to one
// decimal and the target time is reduced to its date and hour in loc, so calls
// within the same hour bucket share one cached forecast.
func Fingerprint(req Request, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t := req.TargetTime.In(loc)
	baseline := math.Round(req.BaselineRatePerHour*10) / 10

	raw := fmt.Sprintf("%s|%.1f|%s|%02d", req.Location.Key(), baseline, t.Format("2006-01-02"), t.Hour())
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
