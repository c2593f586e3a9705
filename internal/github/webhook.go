package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"
	"github.com/tinytelemetry/hookwatch/internal/model"
)

// Header names GitHub sets on webhook deliveries.
const (
	HeaderEvent     = "X-GitHub-Event"
	HeaderDelivery  = "X-GitHub-Delivery"
	HeaderSignature = "X-Hub-Signature-256"
)

// MessageTimeLayout formats the delivery time inside event messages,
// e.g. "01 April 2021 - 09:30 PM UTC".
const MessageTimeLayout = "02 January 2006 - 03:04 PM UTC"

var (
	ErrUnsupportedEvent = errors.New("github: unsupported event")
	ErrIgnoredAction    = errors.New("github: ignored action")
	ErrInvalidSignature = errors.New("github: invalid signature")
	ErrMissingField     = errors.New("github: missing field")
)

// Translate converts one webhook delivery into a stored event. Events other
// than push and pull_request return ErrUnsupportedEvent; pull request actions
// other than opened and merged return ErrIgnoredAction.
func Translate(eventName string, payload []byte, at time.Time) (*model.Event, error) {
	if eventName != model.EventTypePush && eventName != model.EventTypePullRequest {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, eventName)
	}
	parsed, err := gh.ParseWebHook(eventName, payload)
	if err != nil {
		return nil, fmt.Errorf("github: decode %s payload: %w", eventName, err)
	}

	switch ev := parsed.(type) {
	case *gh.PushEvent:
		return pushEvent(ev, at)
	case *gh.PullRequestEvent:
		return pullRequestEvent(ev, at)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, eventName)
	}
}

// ParsePush builds an event from a push payload.
func ParsePush(payload []byte, at time.Time) (*model.Event, error) {
	var p gh.PushEvent
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("github: decode push payload: %w", err)
	}
	return pushEvent(&p, at)
}

func pushEvent(p *gh.PushEvent, at time.Time) (*model.Event, error) {
	switch {
	case p.Pusher == nil || p.Pusher.Name == nil:
		return nil, missing("pusher.name")
	case p.Ref == nil:
		return nil, missing("ref")
	case p.Repo == nil || p.Repo.Name == nil:
		return nil, missing("repository.name")
	}

	author := p.GetPusher().GetName()
	branch := lastSegment(p.GetRef())
	repo := p.GetRepo().GetName()
	at = at.UTC()

	return &model.Event{
		Type:       model.EventTypePush,
		GitHubName: model.EventTypePush,
		Message:    fmt.Sprintf(`"%s" pushed to "%s" in "%s" on %s`, author, branch, repo, at.Format(MessageTimeLayout)),
		Author:     author,
		Branch:     branch,
		Repository: repo,
		ReceivedAt: at,
	}, nil
}

// ParsePullRequest builds an event from a pull_request payload. Only opened
// and merged (closed with merged=true) pull requests produce events.
func ParsePullRequest(payload []byte, at time.Time) (*model.Event, error) {
	var p gh.PullRequestEvent
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("github: decode pull_request payload: %w", err)
	}
	return pullRequestEvent(&p, at)
}

func pullRequestEvent(p *gh.PullRequestEvent, at time.Time) (*model.Event, error) {
	if p.Action == nil {
		return nil, missing("action")
	}
	pr := p.PullRequest
	switch {
	case pr == nil:
		return nil, missing("pull_request")
	case pr.User == nil || pr.User.Login == nil:
		return nil, missing("pull_request.user.login")
	case pr.Head == nil || pr.Head.Ref == nil:
		return nil, missing("pull_request.head.ref")
	case pr.Base == nil || pr.Base.Ref == nil:
		return nil, missing("pull_request.base.ref")
	case pr.Base.Repo == nil || pr.Base.Repo.Name == nil:
		return nil, missing("pull_request.base.repo.name")
	case pr.Number == nil:
		return nil, missing("pull_request.number")
	}

	action := p.GetAction()
	var eventType, verb string
	switch {
	case action == "opened":
		eventType, verb = model.EventTypePullRequest, "submitted"
	case action == "closed" && pr.GetMerged():
		eventType, verb = model.EventTypeMerge, "merged"
	default:
		return nil, fmt.Errorf("%w: %s", ErrIgnoredAction, action)
	}

	author := pr.GetUser().GetLogin()
	from := pr.GetHead().GetRef()
	to := pr.GetBase().GetRef()
	repo := pr.GetBase().GetRepo().GetName()
	at = at.UTC()

	return &model.Event{
		Type:       eventType,
		GitHubName: model.EventTypePullRequest,
		Action:     action,
		Message: fmt.Sprintf(`"%s" %s pull request #%d from "%s" to "%s" in "%s" on %s`,
			author, verb, pr.GetNumber(), from, to, repo, at.Format(MessageTimeLayout)),
		Author:     author,
		FromBranch: from,
		ToBranch:   to,
		Repository: repo,
		PRNumber:   pr.GetNumber(),
		ReceivedAt: at,
	}, nil
}

// VerifySignature checks an X-Hub-Signature-256 header ("sha256=<hex>")
// against the HMAC-SHA256 of body under secret.
func VerifySignature(secret string, body []byte, header string) error {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "sha256=") {
		return ErrInvalidSignature
	}
	if err := gh.ValidateSignature(header, body, []byte(secret)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureHeader formats body's signature the way GitHub sends it.
func SignatureHeader(secret string, body []byte) string {
	return "sha256=" + hex.EncodeToString(Sign(secret, body))
}

func lastSegment(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}
