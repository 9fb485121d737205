package version

// Version is the current version of the wellbeing server
const Version = "0.1.0"

// UserAgent returns the User-Agent string for HTTP requests
func UserAgent() string {
	return "wellbeing/" + Version
}

// ServerHeader returns the Server header value for HTTP responses
func ServerHeader() string {
	return "wellbeing/" + Version
}
