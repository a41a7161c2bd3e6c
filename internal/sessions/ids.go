package sessions

import (
	"math/rand"
	"strconv"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// newChannelID returns session_<unix-ms>_<6 base36 chars>.
func newChannelID(now time.Time) string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = base36[rand.Intn(len(base36))]
	}
	return "session_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix)
}
