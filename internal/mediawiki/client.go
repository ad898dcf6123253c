package mediawiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"

	"github.com/clerkbot/activity-clerk/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Options configures a Client.
type Options struct {
	// APIURL is the Action API endpoint, e.g. https://en.wikipedia.org/w/api.php.
	APIURL string

	// UserAgent is sent with every request.
	UserAgent string

	// MaxLag asks the servers to refuse requests while replication lag
	// exceeds this many seconds. Zero omits the parameter.
	MaxLag int

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// OAuthToken is an owner-only OAuth 2 access token. When set, requests
	// are authenticated with it and Login is unnecessary.
	OAuthToken string

	Logger *slog.Logger
}

// Client is a minimal MediaWiki Action API client: it can log in, read the
// current text of a page, and replace it.
type Client struct {
	apiURL     string
	userAgent  string
	maxLag     int
	httpClient *http.Client
	logger     *slog.Logger

	// newBackOff builds the retry policy for one API call.
	newBackOff func() backoff.BackOff

	authenticated bool
	username      string
	csrfToken     string

	// Bot-password credentials, kept to log in again when the session is lost.
	loginName     string
	loginPassword string
}

// NewClient creates a client for the wiki at opts.APIURL.
func NewClient(opts Options) (*Client, error) {
	if opts.APIURL == "" {
		return nil, fmt.Errorf("api url is required")
	}
	if _, err := url.Parse(opts.APIURL); err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	httpClient := &http.Client{}
	if opts.OAuthToken != "" {
		httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: opts.OAuthToken,
			TokenType:   "Bearer",
		}))
	}
	httpClient.Timeout = timeout
	httpClient.Jar = jar

	return &Client{
		apiURL:        opts.APIURL,
		userAgent:     opts.UserAgent,
		maxLag:        opts.MaxLag,
		httpClient:    httpClient,
		logger:        logger,
		newBackOff:    defaultBackOff,
		authenticated: opts.OAuthToken != "",
	}, nil
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 2 * time.Minute
	return bo
}

// Login authenticates with a bot password. Use a bot password
// ("Account@Name"), not the account's main password.
func (c *Client) Login(ctx context.Context, username, password string) error {
	token, err := c.token(ctx, "login")
	if err != nil {
		return fmt.Errorf("fetch login token: %w", err)
	}

	var resp loginResponse
	err = c.post(ctx, url.Values{
		"action":     {"login"},
		"lgname":     {username},
		"lgpassword": {password},
		"lgtoken":    {token},
	}, &resp)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.Login.Result != "Success" {
		return fmt.Errorf("login rejected: %s %s", resp.Login.Result, resp.Login.Reason)
	}

	c.authenticated = true
	c.username = resp.Login.Username
	c.loginName, c.loginPassword = username, password
	c.csrfToken = ""
	c.logger.Info("logged in", "user", c.username)
	return nil
}

// Authenticated reports whether edits will be made as a logged-in user.
func (c *Client) Authenticated() bool {
	return c.authenticated
}

// PageText returns the current wikitext of title, or "" when the page does
// not exist.
func (c *Client) PageText(ctx context.Context, title string) (string, error) {
	var resp queryResponse
	err := c.get(ctx, url.Values{
		"action":  {"query"},
		"prop":    {"revisions"},
		"titles":  {title},
		"rvprop":  {"content"},
		"rvslots": {"main"},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("read page %q: %w", title, err)
	}

	if len(resp.Query.Pages) == 0 {
		return "", fmt.Errorf("read page %q: no page in response", title)
	}
	page := resp.Query.Pages[0]
	switch {
	case page.Invalid:
		return "", fmt.Errorf("read page %q: invalid title: %s", title, page.InvalidReason)
	case page.Missing || len(page.Revisions) == 0:
		return "", nil
	}
	return page.Revisions[0].Slots.Main.Content, nil
}

// SavePage replaces the text of a page. When the client is authenticated
// the edit asserts it so a lost session fails instead of editing logged out;
// a bot-password session is then renewed once and the edit retried.
func (c *Client) SavePage(ctx context.Context, edit domain.Edit) error {
	err := c.savePage(ctx, edit)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.Code {
	case "badtoken":
		c.csrfToken = ""
	case "assertuserfailed", "assertbotfailed":
		if c.loginName == "" {
			return err
		}
		c.logger.Warn("session lost, logging in again", "user", c.loginName)
		if lerr := c.Login(ctx, c.loginName, c.loginPassword); lerr != nil {
			return fmt.Errorf("renew session: %w", lerr)
		}
	default:
		return err
	}
	return c.savePage(ctx, edit)
}

func (c *Client) savePage(ctx context.Context, edit domain.Edit) error {
	if c.csrfToken == "" {
		token, err := c.token(ctx, "csrf")
		if err != nil {
			return fmt.Errorf("fetch csrf token: %w", err)
		}
		c.csrfToken = token
	}

	params := url.Values{
		"action":  {"edit"},
		"title":   {edit.Title},
		"text":    {edit.Text},
		"summary": {edit.Summary},
		"token":   {c.csrfToken},
	}
	if edit.Minor {
		params.Set("minor", "1")
	} else {
		params.Set("notminor", "1")
	}
	if c.authenticated {
		params.Set("assert", "user")
	}

	var resp editResponse
	if err := c.post(ctx, params, &resp); err != nil {
		return fmt.Errorf("edit %q: %w", edit.Title, err)
	}
	if resp.Edit.Result != "Success" {
		return fmt.Errorf("edit %q: result %s", edit.Title, resp.Edit.Result)
	}
	return nil
}

func (c *Client) token(ctx context.Context, kind string) (string, error) {
	var resp tokensResponse
	err := c.get(ctx, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {kind},
	}, &resp)
	if err != nil {
		return "", err
	}

	var token string
	switch kind {
	case "login":
		token = resp.Query.Tokens.LoginToken
	default:
		token = resp.Query.Tokens.CSRFToken
	}
	if token == "" {
		return "", fmt.Errorf("empty %s token", kind)
	}
	return token, nil
}

func (c *Client) get(ctx context.Context, params url.Values, result any) error {
	return c.call(ctx, http.MethodGet, params, result)
}

func (c *Client) post(ctx context.Context, params url.Values, result any) error {
	return c.call(ctx, http.MethodPost, params, result)
}

// call performs one API request, retrying transient failures with
// exponential backoff.
func (c *Client) call(ctx context.Context, method string, params url.Values, result any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	if c.maxLag > 0 {
		params.Set("maxlag", strconv.Itoa(c.maxLag))
	}

	op := func() error {
		err := c.roundTrip(ctx, method, params, result)
		if err == nil || retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("api request failed, retrying", "action", params.Get("action"), "wait", wait, "error", err)
	}
	return backoff.RetryNotify(op, backoff.WithContext(c.newBackOff(), ctx), notify)
}

func (c *Client) roundTrip(ctx context.Context, method string, params url.Values, result any) error {
	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, c.apiURL+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.apiURL, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
