package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"article-video-gen/internal/logging"
	"article-video-gen/internal/model"
)

var (
	// ErrNoMorePages is returned for a page past the end of the catalog.
	ErrNoMorePages = errors.New("content: no more pages")
	ErrNotFound    = errors.New("content: not found")
)

// Client reads posts from a WordPress REST API and reshapes them into
// model.Post.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logging.Logger

	Defaults Defaults
	// Embeds resolves YouTube embeds on single-post reads; nil disables it.
	Embeds *EmbedResolver
}

func NewClient(baseURL string, httpClient *http.Client, log *logging.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:  baseURL,
		http:     httpClient,
		log:      log,
		Defaults: DefaultProfile,
	}
}

// ListPosts fetches one catalog page. A page past the end yields ErrNoMorePages.
func (c *Client) ListPosts(ctx context.Context, page, perPage int) (model.PostPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("_embed", "1")

	body, hdr, status, err := c.get(ctx, "/wp-json/wp/v2/posts", q)
	if err != nil {
		return model.PostPage{}, err
	}
	if status == http.StatusBadRequest {
		code := gjson.GetBytes(body, "code").String()
		if code == "rest_post_invalid_page_number" || page > 1 {
			return model.PostPage{}, ErrNoMorePages
		}
	}
	if status != http.StatusOK {
		return model.PostPage{}, fmt.Errorf("list posts page %d: http %d: %s", page, status, truncate(string(body), 200))
	}

	res := gjson.ParseBytes(body)
	if !res.IsArray() {
		return model.PostPage{}, fmt.Errorf("list posts page %d: expected array", page)
	}

	out := model.PostPage{
		Page:       page,
		TotalPages: headerInt(hdr, "X-WP-TotalPages"),
		Total:      headerInt(hdr, "X-WP-Total"),
		Posts:      make([]model.Post, 0, len(res.Array())),
	}
	for _, item := range res.Array() {
		out.Posts = append(out.Posts, c.Defaults.Apply(decodePost(item, c.baseURL)))
	}
	return out, nil
}

func (c *Client) GetPost(ctx context.Context, id int64) (model.Post, error) {
	q := url.Values{}
	q.Set("_embed", "1")
	body, _, status, err := c.get(ctx, fmt.Sprintf("/wp-json/wp/v2/posts/%d", id), q)
	if err != nil {
		return model.Post{}, err
	}
	if status == http.StatusNotFound {
		return model.Post{}, ErrNotFound
	}
	if status != http.StatusOK {
		return model.Post{}, fmt.Errorf("get post %d: http %d: %s", id, status, truncate(string(body), 200))
	}

	post := c.Defaults.Apply(decodePost(gjson.ParseBytes(body), c.baseURL))
	if c.Embeds != nil {
		post.Videos = c.Embeds.Resolve(ctx, ExtractYouTubeIDs(post.Content))
	}
	return post, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	q := url.Values{}
	q.Set("per_page", "100")
	body, _, status, err := c.get(ctx, "/wp-json/wp/v2/categories", q)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list categories: http %d: %s", status, truncate(string(body), 200))
	}

	var out []model.Category
	for _, item := range gjson.ParseBytes(body).Array() {
		out = append(out, model.Category{
			ID:          item.Get("id").Int(),
			Name:        plainText(item.Get("name").String()),
			Slug:        item.Get("slug").String(),
			Description: plainText(item.Get("description").String()),
			Count:       int(item.Get("count").Int()),
			Parent:      item.Get("parent").Int(),
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, http.Header, int, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "article-video-gen/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	return body, resp.Header, resp.StatusCode, nil
}

func headerInt(h http.Header, key string) int {
	n, err := strconv.Atoi(h.Get(key))
	if err != nil {
		return 0
	}
	return n
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
