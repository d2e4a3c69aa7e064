package model

import "time"

// RawImage is an image embedded in a post. Width and Height are nil when the
// markup did not state them.
type RawImage struct {
	URL     string `json:"url"`
	Alt     string `json:"alt"`
	Title   string `json:"title"`
	Width   *int   `json:"width,omitempty"`
	Height  *int   `json:"height,omitempty"`
	Caption string `json:"caption"`
}

type Author struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Avatar string `json:"avatar,omitempty"`
}

type Term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Count       int    `json:"count"`
	Parent      int64  `json:"parent"`
}

// EmbeddedVideo is a third-party video referenced by a post.
type EmbeddedVideo struct {
	Provider   string   `json:"provider"`
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	Title      string   `json:"title,omitempty"`
	Author     string   `json:"author,omitempty"`
	DurationS  float64  `json:"duration_s,omitempty"`
	Thumbnails []string `json:"thumbnails,omitempty"`
}

// Post is the reshaped upstream article.
type Post struct {
	ID         int64           `json:"id"`
	Slug       string          `json:"slug"`
	Link       string          `json:"link"`
	Title      string          `json:"title"`
	Excerpt    string          `json:"excerpt"`
	Content    string          `json:"content"`
	Date       time.Time       `json:"date"`
	Modified   time.Time       `json:"modified"`
	Author     Author          `json:"author"`
	Categories []Term          `json:"categories"`
	Tags       []Term          `json:"tags"`
	Featured   *RawImage       `json:"featured_image,omitempty"`
	Images     []RawImage      `json:"images"`
	Videos     []EmbeddedVideo `json:"videos,omitempty"`
}

// PostPage is one page of the catalog plus the source's total-page signal.
type PostPage struct {
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	Total      int    `json:"total"`
	Posts      []Post `json:"posts"`
}

type VideoStatus string

const (
	VideoStatusCompleted VideoStatus = "completed"
	VideoStatusError     VideoStatus = "error"
)

const VideoFormat = "1080x1920"

type VideoMeta struct {
	Duration   int       `json:"duration"` // seconds
	ImageCount int       `json:"imageCount"`
	Format     string    `json:"format"`
	Timestamp  time.Time `json:"timestamp"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// VideoResult is the terminal record of one pipeline run.
type VideoResult struct {
	Status VideoStatus `json:"status"`
	URL    string      `json:"url,omitempty"`
	Error  string      `json:"error,omitempty"`
	Meta   VideoMeta   `json:"meta"`
}

func (r VideoResult) Completed() bool { return r.Status == VideoStatusCompleted }

// VideoRecord is an entry of the videos index.
type VideoRecord struct {
	PostID    int64     `json:"post_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Trigger   string    `json:"trigger"` // "catalog" or "manual"
	CreatedAt time.Time `json:"created_at"`
	Meta      VideoMeta `json:"meta"`
}

type VideosIndex struct {
	UpdatedAt time.Time     `json:"updated_at"`
	Items     []VideoRecord `json:"items"`
}

type ProcessedIndex struct {
	UpdatedAt time.Time `json:"updated_at"`
	ResetAt   time.Time `json:"reset_at"` // last wholesale reset of the set
	IDs       []int64   `json:"ids"`
}
