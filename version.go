package skillhunt

// VERSION is overridden at build time via -ldflags "-X github.com/tgifai/skillhunt.VERSION=...".
var VERSION = "n/a"

// UserAgent identifies skillhunt on outbound platform requests.
func UserAgent() string {
	return "skillhunt/" + VERSION
}
