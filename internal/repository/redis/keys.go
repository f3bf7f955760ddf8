package redis

import "fmt"

const ns = "cinepass:v1"

func KeyScreeningSummary(screeningID int64) string {
	return fmt.Sprintf("%s:screening:%d:summary", ns, screeningID)
}

func KeyScreeningAvailability(screeningID int64) string {
	return fmt.Sprintf("%s:screening:%d:availability", ns, screeningID)
}

func KeyScreeningSeatMap(screeningID int64) string {
	return fmt.Sprintf("%s:screening:%d:seatmap", ns, screeningID)
}

func KeyIdemHold(screeningID int64, idemKey string) string {
	return fmt.Sprintf("%s:idem:holds:%d:%s", ns, screeningID, idemKey)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelScreeningsChanged() string {
	return ns + ":screenings:changed"
}
