package gbot

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

var (
	bountyIssue     = agreement.BountyRecord{RepoOwner: "sunshine-protocol", RepoName: "sunshine", IssueNumber: 8}
	submissionIssue = agreement.BountyRecord{RepoOwner: "sunshine-protocol", RepoName: "sunshine", IssueNumber: 21}
)

const botLogin = "bounty-bot"

var (
	listPath = regexp.MustCompile(`^/repos/([^/]+)/([^/]+)/issues/(\d+)/comments$`)
	editPath = regexp.MustCompile(`^/repos/([^/]+)/([^/]+)/issues/comments/(\d+)$`)
)

// fakeGitHub serves the issue comment endpoints from memory.
type fakeGitHub struct {
	t *testing.T

	mu         sync.Mutex
	issues     map[string][]*Comment
	nextID     int64
	requests   int
	posts      int
	patches    int
	status     int
	statusMsg  string
	retryAfter string
	editsGone  bool
}

func (gh *fakeGitHub) writes() (posts, patches int) {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	return gh.posts, gh.patches
}

func (gh *fakeGitHub) requestCount() int {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	return gh.requests
}

func (gh *fakeGitHub) failWith(status int, msg string) {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	gh.status = status
	gh.statusMsg = msg
}

// throttle answers every request with a secondary rate limit.
func (gh *fakeGitHub) throttle(retryAfter string) {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	gh.status = http.StatusTooManyRequests
	gh.statusMsg = "You have exceeded a secondary rate limit"
	gh.retryAfter = retryAfter
}

// loseEdits deletes a comment when it is edited, as if its author removed it
// in between.
func (gh *fakeGitHub) loseEdits() {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	gh.editsGone = true
}

func newFakeGitHub(t *testing.T) (*fakeGitHub, *httptest.Server) {
	gh := &fakeGitHub{t: t, issues: make(map[string][]*Comment), nextID: 100}
	return gh, httptest.NewServer(gh)
}

func issueKey(owner, repo, number string) string {
	return owner + "/" + repo + "#" + number
}

func (gh *fakeGitHub) seed(author string, rec agreement.BountyRecord, bodies ...string) {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	key := issueKey(rec.RepoOwner, rec.RepoName, strconv.FormatUint(rec.IssueNumber, 10))
	for _, body := range bodies {
		gh.issues[key] = append(gh.issues[key], &Comment{ID: gh.nextID, Body: body, User: User{Login: author}})
		gh.nextID++
	}
}

func (gh *fakeGitHub) comments(rec agreement.BountyRecord) []Comment {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	var out []Comment
	for _, c := range gh.issues[issueKey(rec.RepoOwner, rec.RepoName, strconv.FormatUint(rec.IssueNumber, 10))] {
		out = append(out, *c)
	}
	return out
}

func (gh *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gh.mu.Lock()
	defer gh.mu.Unlock()

	assert.Equal(gh.t, "Bearer test-token", r.Header.Get("Authorization"))
	assert.Equal(gh.t, githubAPIVersion, r.Header.Get("X-GitHub-Api-Version"))
	gh.requests++

	if gh.status != 0 {
		if gh.retryAfter != "" {
			w.Header().Set("Retry-After", gh.retryAfter)
		}
		w.WriteHeader(gh.status)
		_, _ = fmt.Fprintf(w, `{"message":%q}`, gh.statusMsg)
		return
	}

	if r.URL.Path == "/user" && r.Method == http.MethodGet {
		_ = json.NewEncoder(w).Encode(User{Login: botLogin, ID: 7})
		return
	}

	if m := listPath.FindStringSubmatch(r.URL.Path); m != nil {
		key := issueKey(m[1], m[2], m[3])
		switch r.Method {
		case http.MethodGet:
			perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
			if perPage == 0 {
				perPage = 30
			}
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			if page == 0 {
				page = 1
			}
			all := gh.issues[key]
			from := (page - 1) * perPage
			to := from + perPage
			if from > len(all) {
				from = len(all)
			}
			if to > len(all) {
				to = len(all)
			} else if to < len(all) {
				next := fmt.Sprintf("http://%s%s?per_page=%d&page=%d", r.Host, r.URL.Path, perPage, page+1)
				w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
			}
			out := make([]*Comment, 0, to-from)
			out = append(out, all[from:to]...)
			_ = json.NewEncoder(w).Encode(out)
		case http.MethodPost:
			var req commentRequest
			assert.NoError(gh.t, json.NewDecoder(r.Body).Decode(&req))
			c := &Comment{ID: gh.nextID, Body: req.Body, User: User{Login: botLogin}}
			gh.nextID++
			gh.issues[key] = append(gh.issues[key], c)
			gh.posts++
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(c)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if m := editPath.FindStringSubmatch(r.URL.Path); m != nil && r.Method == http.MethodPatch {
		id, _ := strconv.ParseInt(m[3], 10, 64)
		var req commentRequest
		assert.NoError(gh.t, json.NewDecoder(r.Body).Decode(&req))
		for key, comments := range gh.issues {
			if !strings.HasPrefix(key, m[1]+"/"+m[2]+"#") {
				continue
			}
			for i, c := range comments {
				if c.ID != id {
					continue
				}
				if gh.editsGone {
					gh.issues[key] = append(comments[:i:i], comments[i+1:]...)
					break
				}
				if c.User.Login != botLogin {
					w.WriteHeader(http.StatusForbidden)
					_, _ = w.Write([]byte(`{"message":"Must have admin rights to Repository."}`))
					return
				}
				c.Body = req.Body
				gh.patches++
				_ = json.NewEncoder(w).Encode(c)
				return
			}
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"message":"Not Found"}`))
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	client, err := NewClient(context.Background(), &Config{
		BaseURL:           srv.URL,
		Token:             "test-token",
		RequestsPerSecond: -1,
	}, srv.Client())
	require.NoError(t, err)
	return client
}

func TestNewClientNeedsToken(t *testing.T) {
	_, err := NewClient(context.Background(), &Config{}, nil)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestNewClientResolvesLogin(t *testing.T) {
	gh, srv := newFakeGitHub(t)
	defer srv.Close()

	client := newTestClient(t, srv)
	assert.Equal(t, botLogin, client.Login())

	gh.failWith(http.StatusUnauthorized, "Bad credentials")
	_, err := NewClient(context.Background(), &Config{BaseURL: srv.URL, Token: "test-token"}, srv.Client())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestCreateBountyCommentIdempotent(t *testing.T) {
	gh, srv := newFakeGitHub(t)
	defer srv.Close()
	client := newTestClient(t, srv)
	ctx := context.Background()

	require.NoError(t, client.CreateBountyComment(ctx, bountyIssue, 1, big.NewInt(10)))
	require.NoError(t, client.CreateBountyComment(ctx, bountyIssue, 1, big.NewInt(10)))

	comments := gh.comments(bountyIssue)
	require.Len(t, comments, 1)
	assert.Equal(t, RenderBountyStatus(bountyIssue, 1, big.NewInt(10)), comments[0].Body)
	posts, _ := gh.writes()
	assert.Equal(t, 1, posts)
}

func TestReplayedCreateKeepsTotal(t *testing.T) {
	gh, srv := newFakeGitHub(t)
	defer srv.Close()
	client := newTestClient(t, srv)
	ctx := context.Background()

	require.NoError(t, client.CreateBountyComment(ctx, bountyIssue, 1, big.NewInt(10)))
	require.NoError(t, client.UpdateBountyComment(ctx, bountyIssue, 1, big.NewInt(15)))
	require.NoError(t, client.CreateBountyComment(ctx, bountyIssue, 1, big.NewInt(10)))

	comments := gh.comments(bountyIssue)
	require.Len(t, comments, 1)
	assert.Contains(t, comments[0].Body, "| 15 |")
}

func TestUpdateBountyComment(t *testing.T) {
	gh, srv := newFakeGitHub(t)
	defer srv.Close()
	client := newTestClient(t, srv)
	ctx := context.Background()

	// creates when absent
	require.NoError(t, client.UpdateBountyComment(ctx, bountyIssue, 1, big.NewInt(15)))
	require.NoError(t, client.UpdateBountyComment(ctx, bountyIssue, 1, big.NewInt(15)))
	posts, patches := gh.writes()
	assert.Equal(t, 1, posts)
	assert.Equal(t, 0, patches)

	require.NoError(t, client.UpdateBountyComment(ctx, bountyIssue, 1, big.NewInt(20)))
	_, patches = gh.writes()
	assert.Equal(t, 1, patches)

	comments := gh.comments(bountyIssue)
	require.Len(t, comments, 1)
	assert.Equal(t, RenderBountyStatus(bountyIssue, 1, big.NewInt(20)), comments[0].Body)
}

func TestSubmissionLifecycle(t *testing.T) {
	gh, srv := newFakeGitHub(t)
	defer srv.Close()
	client := newTestClient(t, srv)
	ctx := context.Background()

	require.NoError(t, client.CreateSubmissionComment(ctx, bountyIssue, submissionIssue, 1, 4, big.NewInt(7)))
	comments := gh.comments(submissionIssue)
	require.Len(t, comments, 1)
	assert.Contains(t, comments[0].Body, "pending approval")
	assert.Contains(t, comments[0].Body, "sunshine-protocol/sunshine#8")
	assert.Empty(t, gh.comments(bountyIssue))

	require.NoError(t, client.ApproveSubmissionComment(ctx, bountyIssue, submissionIssue, 1, 4, big.NewInt(7), big.NewInt(8)))
	require.NoError(t, client.ApproveSubmissionComment(ctx, bountyIssue, submissionIssue, 1, 4, big.NewInt(7), big.NewInt(8)))
	// a replayed posting does not revert the approval
	require.NoError(t, client.CreateSubmissionComment(ctx, bountyIssue, submissionIssue, 1, 4, big.NewInt(7)))

	comments = gh.comments(submissionIssue)
	require.Len(t, comments, 1)
	assert.Contains(t, comments[0].Body, "approved and paid")
	posts, patches := gh.writes()
	assert.Equal(t, 1, posts)
	assert.Equal(t, 1, patches)
}

func TestFindAcrossPages(t *testing.T) {
	gh, srv := newFakeGitHub(t)
	defer srv.Close()
	client := newTestClient(t, srv)
	ctx := context.Background()

	var noise []string
	for i := 0; i < 150; i++ {
		noise = append(noise, fmt.Sprintf("comment %d", i))
	}
	gh.seed("alice", bountyIssue, noise...)
	gh.seed(botLogin, bountyIssue, RenderBountyStatus(bountyIssue, 1, big.NewInt(10)))

	all, err := client.ListComments(ctx, "sunshine-protocol", "sunshine", 8)
	require.NoError(t, err)
	assert.Len(t, all, 151)

	require.NoError(t, client.CreateBountyComment(ctx, bountyIssue, 1, big.NewInt(10)))
	posts, _ := gh.writes()
	assert.Equal(t, 0, posts)
}

func TestForeignMarkerIsIgnored(t *testing.T) {
	gh, srv := newFakeGitHub(t)
	defer srv.Close()
	client := newTestClient(t, srv)
	ctx := context.Background()

	gh.seed("mallory", bountyIssue, "spam "+Marker(agreement.CommentKey{Role: agreement.RoleBountyStatus, ID: 1}))

	require.NoError(t, client.CreateBountyComment(ctx, bountyIssue, 1, big.NewInt(10)))
	require.NoError(t, client.UpdateBountyComment(ctx, bountyIssue, 1, big.NewInt(15)))

	posts, patches := gh.writes()
	assert.Equal(t, 1, posts)
	assert.Equal(t, 1, patches)

	comments := gh.comments(bountyIssue)
	require.Len(t, comments, 2)
	assert.Equal(t, "mallory", comments[0].User.Login)
	assert.True(t, strings.HasPrefix(comments[0].Body, "spam "))
	assert.Equal(t, botLogin, comments[1].User.Login)
	assert.Equal(t, RenderBountyStatus(bountyIssue, 1, big.NewInt(15)), comments[1].Body)
}

func TestEditOfDeletedCommentPostsAgain(t *testing.T) {
	gh, srv := newFakeGitHub(t)
	defer srv.Close()
	client := newTestClient(t, srv)
	ctx := context.Background()

	require.NoError(t, client.CreateBountyComment(ctx, bountyIssue, 1, big.NewInt(10)))
	gh.loseEdits()
	require.NoError(t, client.UpdateBountyComment(ctx, bountyIssue, 1, big.NewInt(15)))

	comments := gh.comments(bountyIssue)
	require.Len(t, comments, 1)
	assert.Equal(t, RenderBountyStatus(bountyIssue, 1, big.NewInt(15)), comments[0].Body)
	posts, _ := gh.writes()
	assert.Equal(t, 2, posts)
}

func TestRateLimitHoldsRequests(t *testing.T) {
	gh, srv := newFakeGitHub(t)
	defer srv.Close()
	client := newTestClient(t, srv)

	gh.throttle("60")
	err := client.CreateBountyComment(context.Background(), bountyIssue, 1, big.NewInt(10))
	assert.True(t, IsRateLimited(err))

	gh.failWith(0, "")
	sent := gh.requestCount()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = client.CreateBountyComment(ctx, bountyIssue, 1, big.NewInt(10))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// held back before reaching the wire
	assert.Equal(t, sent, gh.requestCount())
}

func TestMarkersDoNotCollide(t *testing.T) {
	gh, srv := newFakeGitHub(t)
	defer srv.Close()
	client := newTestClient(t, srv)
	ctx := context.Background()

	require.NoError(t, client.CreateBountyComment(ctx, bountyIssue, 10, big.NewInt(100)))
	require.NoError(t, client.CreateBountyComment(ctx, bountyIssue, 1, big.NewInt(10)))
	assert.Len(t, gh.comments(bountyIssue), 2)
}

func TestAPIErrors(t *testing.T) {
	gh, srv := newFakeGitHub(t)
	defer srv.Close()
	client := newTestClient(t, srv)
	ctx := context.Background()

	gh.failWith(http.StatusForbidden, "API rate limit exceeded for user")
	err := client.CreateBountyComment(ctx, bountyIssue, 1, big.NewInt(10))
	assert.True(t, IsRateLimited(err))

	gh.failWith(http.StatusNotFound, "Not Found")
	err = client.UpdateBountyComment(ctx, bountyIssue, 1, big.NewInt(10))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsRateLimited(err))
}

func TestParseLinkNext(t *testing.T) {
	header := `<https://api.github.com/repositories/1/issues/8/comments?page=2>; rel="next", <https://api.github.com/repositories/1/issues/8/comments?page=5>; rel="last"`
	assert.Equal(t, "https://api.github.com/repositories/1/issues/8/comments?page=2", parseLinkNext(header))
	assert.Equal(t, "", parseLinkNext(`<https://x/?page=1>; rel="prev"`))
	assert.Equal(t, "", parseLinkNext(""))
}
