package x11

import "os"

// DetectDisplayServer reports the session type: "x11", "wayland" or
// "unknown". A Wayland session with DISPLAY set still has XWayland.
func DetectDisplayServer() string {
	sessionType := os.Getenv("XDG_SESSION_TYPE")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	x11Display := os.Getenv("DISPLAY")

	if sessionType == "wayland" || waylandDisplay != "" {
		return "wayland"
	}

	if sessionType == "x11" || x11Display != "" {
		return "x11"
	}

	return "unknown"
}

// Reachable reports whether an X server can be addressed, either through
// display or $DISPLAY
func Reachable(display string) bool {
	return display != "" || os.Getenv("DISPLAY") != ""
}
