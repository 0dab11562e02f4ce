package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Post is the subset of the WordPress post representation we consume.
type Post struct {
	ID      int    `json:"id"`
	Link    string `json:"link"`
	Status  string `json:"status"`
	DateGMT string `json:"date_gmt"`
}

// Term is a WordPress category or tag.
type Term struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// PostInput is the create-post request body.
type PostInput struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Excerpt    string `json:"excerpt,omitempty"`
	Status     string `json:"status"`
	Categories []int  `json:"categories,omitempty"`
	Tags       []int  `json:"tags,omitempty"`
}

// Client talks to the WordPress REST API. The token is an opaque bearer
// credential; its structure is never inspected.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimSuffix(url, "/")
}

func (c *Client) CreatePost(ctx context.Context, in PostInput) (*Post, error) {
	var post Post
	if err := c.do(ctx, http.MethodPost, "/wp-json/wp/v2/posts", in, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost sends a partial update. Scheduling a post is an update to
// status "future" plus a date.
func (c *Client) UpdatePost(ctx context.Context, id int, fields map[string]interface{}) (*Post, error) {
	var post Post
	path := fmt.Sprintf("/wp-json/wp/v2/posts/%d", id)
	if err := c.do(ctx, http.MethodPost, path, fields, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) GetPost(ctx context.Context, id int) (*Post, error) {
	var post Post
	path := fmt.Sprintf("/wp-json/wp/v2/posts/%d", id)
	if err := c.do(ctx, http.MethodGet, path, nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) DeletePost(ctx context.Context, id int) error {
	path := fmt.Sprintf("/wp-json/wp/v2/posts/%d", id)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) ListCategories(ctx context.Context) ([]Term, error) {
	var terms []Term
	if err := c.do(ctx, http.MethodGet, "/wp-json/wp/v2/categories?per_page=100", nil, &terms); err != nil {
		return nil, err
	}
	return terms, nil
}

func (c *Client) ListTags(ctx context.Context) ([]Term, error) {
	var terms []Term
	if err := c.do(ctx, http.MethodGet, "/wp-json/wp/v2/tags?per_page=100", nil, &terms); err != nil {
		return nil, err
	}
	return terms, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("wordpress api error: %s %s: status %d: %s", method, path, resp.StatusCode, string(detail))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
