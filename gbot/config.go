package gbot

const (
	DefaultBaseURL = "https://api.github.com"

	defaultRequestsPerSecond = 1.0
	defaultBurst             = 5

	githubAPIVersion = "2022-11-28"
	commentsPerPage  = 100
	userAgent        = "bounty-bot"
)

type Config struct {
	// BaseURL of the REST API, DefaultBaseURL when empty.
	BaseURL string

	// Token is a personal access token or an installation token.
	Token string

	// RequestsPerSecond and Burst throttle every outgoing request.
	RequestsPerSecond float64
	Burst             int
}
