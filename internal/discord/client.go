package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"discord-code-runner/internal/model"
)

const (
	DefaultBaseURL = "https://discord.com/api/v10"
	// MaxContent is the longest message body Discord accepts.
	MaxContent = 2000
	pageSize   = 50
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		http:     &http.Client{Timeout: 20 * time.Second},
		logger:   zap.NewNop(),
		limiters: map[string]*rate.Limiter{},
		limit:    rate.Every(time.Second),
		burst:    5,
	}
}

// SetLogger replaces the client's logger; nil restores the no-op logger.
func (c *Client) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger = logger
}

// SetSendRate replaces the per-channel limit applied to SendText.
func (c *Client) SetSendRate(limit rate.Limit, burst int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit, c.burst = limit, burst
	c.limiters = map[string]*rate.Limiter{}
}

type apiUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

type apiMessage struct {
	ID        string  `json:"id"`
	ChannelID string  `json:"channel_id"`
	Author    apiUser `json:"author"`
	Content   string  `json:"content"`
	Timestamp string  `json:"timestamp"`
}

// Me returns the account the token belongs to.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var u apiUser
	if err := c.do(ctx, http.MethodGet, "/users/@me", nil, &u); err != nil {
		return model.User{}, fmt.Errorf("get current user: %w", err)
	}
	return model.User{ID: u.ID, Username: u.Username, Bot: u.Bot}, nil
}

// FetchMessages returns up to one page of messages posted in channelID
// after the message id `after`, oldest first. An empty `after` returns the
// latest page.
func (c *Client) FetchMessages(ctx context.Context, channelID, after string) ([]model.Message, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(pageSize))
	if after != "" {
		q.Set("after", after)
	}
	var items []apiMessage
	path := "/channels/" + url.PathEscape(channelID) + "/messages?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	out := make([]model.Message, 0, len(items))
	for _, item := range items {
		ts, err := time.Parse(time.RFC3339Nano, item.Timestamp)
		if err != nil {
			ts = snowflakeTime(item.ID)
			c.logger.Debug("unparsable message timestamp, using id time",
				zap.String("message_id", item.ID),
				zap.String("timestamp", item.Timestamp),
				zap.Time("id_time", ts),
				zap.Error(err))
		}
		out = append(out, model.Message{
			MessageID:  item.ID,
			ChannelID:  blankAs(item.ChannelID, channelID),
			AuthorID:   item.Author.ID,
			AuthorName: item.Author.Username,
			AuthorBot:  item.Author.Bot,
			Text:       item.Content,
			CreateTime: ts,
		})
	}
	// Discord pages newest first.
	slices.Reverse(out)
	return out, nil
}

// SendText posts text to channelID, cutting it to MaxContent characters.
func (c *Client) SendText(ctx context.Context, channelID, text string) error {
	if err := c.limiter(channelID).Wait(ctx); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	payload := map[string]any{"content": fitContent(text)}
	if err := c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/messages", payload, nil); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (c *Client) limiter(channelID string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[channelID]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[channelID] = l
	}
	return l
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return fmt.Errorf("status=%d body=%s", res.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

const cutMarker = "\n... (truncated)"

// fitContent cuts text to MaxContent characters, closing a ``` fence the
// cut left open.
func fitContent(text string) string {
	if utf8.RuneCountInString(text) <= MaxContent {
		return text
	}
	tail := cutMarker
	if strings.HasPrefix(text, "```") {
		tail += "\n```"
	}
	runes := []rune(text)
	return string(runes[:MaxContent-utf8.RuneCountInString(tail)]) + tail
}

// discordEpochMs is the first second of 2015 in Unix milliseconds; message
// ids carry their creation time as milliseconds since then in the top 42 bits.
const discordEpochMs = 1420070400000

// snowflakeTime returns the creation time encoded in a message id, or the
// zero time if id is not a number.
func snowflakeTime(id string) time.Time {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(int64(n>>22) + discordEpochMs)
}

func blankAs(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}
