package gbot

// User is the author of a comment, or the account behind the token.
type User struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

// Comment is the subset of an issue comment the bot reads.
type Comment struct {
	ID      int64  `json:"id"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	User    User   `json:"user"`
}

type commentRequest struct {
	Body string `json:"body"`
}

type errorResponse struct {
	Message string `json:"message"`
}
