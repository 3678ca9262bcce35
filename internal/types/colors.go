package types

// UserColors is the fixed palette shared by both sync variants. The
// values must match across transports for visual consistency.
var UserColors = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A",
	"#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E2",
}

// ColorAt returns the palette color for the n-th participant to join a
// room, wrapping around the palette.
func ColorAt(n int) string {
	if n < 0 {
		n = -n
	}
	return UserColors[n%len(UserColors)]
}

// DefaultLanguage is the language assigned to a freshly created room.
const DefaultLanguage = "javascript"
