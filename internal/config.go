package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Upstream WordPress site, e.g. https://example.com
	WPBaseURL  string
	WPPageSize int

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string // public base for stored objects; derived from endpoint+bucket when empty

	VideosPrefix     string // "videos/"
	ProcessedJSONKey string // "processed.json" - processed post ids since last reset
	VideosJSONKey    string // "videos.json" - history of completed videos

	RedisURL string // when set, the processed set lives in redis instead of S3

	TelegramToken string
	PostsChatID   int64
	GeminiAPIKey  string

	APIPort            string
	BackendAPIKey      string
	CorsAllowedOrigins string

	WorkDir         string
	ClipDuration    time.Duration
	ConcatBatchSize int
	MinImageSize    int
	VisualDedupe    bool
	EnrichEmbeds    bool

	ItemDelay       time.Duration
	CatalogSchedule string
	ResetSchedule   string
	RunOnStart      bool

	FFmpegMaxProcs  int
	DownloadTimeout time.Duration
	EncodeTimeout   time.Duration
	UploadTimeout   time.Duration
}

func LoadConfig() (Config, error) {
	cfg := Config{
		WPBaseURL:   strings.TrimRight(os.Getenv("WP_BASE_URL"), "/"),
		WPPageSize:  20,
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    os.Getenv("S3_REGION"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3AccessKey: firstNonEmpty(os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_ACCESS_KEY_ID")),
		S3SecretKey: firstNonEmpty(os.Getenv("S3_SECRET_ACCESS_KEY"), os.Getenv("S3_SECRET_ACCESS_KEY_ID")),
		S3PublicURL: strings.TrimRight(os.Getenv("S3_PUBLIC_URL"), "/"),

		VideosPrefix:     "videos/",
		ProcessedJSONKey: "processed.json",
		VideosJSONKey:    "videos.json",

		RedisURL: os.Getenv("REDIS_URL"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		GeminiAPIKey:  firstNonEmpty(os.Getenv("GOOGLE_API_KEY"), os.Getenv("GEMINI_API_KEY")),

		APIPort:            firstNonEmpty(os.Getenv("API_PORT"), "8080"),
		BackendAPIKey:      os.Getenv("BACKEND_API_KEY"),
		CorsAllowedOrigins: os.Getenv("CORS_ALLOWED_ORIGINS"),

		WorkDir:         firstNonEmpty(os.Getenv("WORK_DIR"), filepath.Join(os.TempDir(), "article-video-gen")),
		ClipDuration:    3 * time.Second,
		ConcatBatchSize: 5,
		MinImageSize:    300,
		VisualDedupe:    false,
		EnrichEmbeds:    true,

		ItemDelay:       5 * time.Second,
		CatalogSchedule: firstNonEmpty(os.Getenv("CATALOG_SCHEDULE"), "@every 4h"),
		ResetSchedule:   firstNonEmpty(os.Getenv("RESET_SCHEDULE"), "@every 24h"),
		RunOnStart:      true,

		FFmpegMaxProcs:  runtime.NumCPU(),
		DownloadTimeout: 60 * time.Second,
		EncodeTimeout:   5 * time.Minute,
		UploadTimeout:   3 * time.Minute,
	}

	if v := os.Getenv("VIDEOS_PREFIX"); v != "" {
		cfg.VideosPrefix = strings.TrimSuffix(v, "/") + "/"
	}
	if v := os.Getenv("PROCESSED_JSON_KEY"); v != "" {
		cfg.ProcessedJSONKey = v
	}
	if v := os.Getenv("VIDEOS_JSON_KEY"); v != "" {
		cfg.VideosJSONKey = v
	}

	cfg.WPPageSize = envInt("WP_PAGE_SIZE", cfg.WPPageSize)
	if cfg.WPPageSize > 100 {
		// WordPress rejects per_page above 100
		cfg.WPPageSize = 100
	}
	cfg.ConcatBatchSize = envInt("CONCAT_BATCH_SIZE", cfg.ConcatBatchSize)
	cfg.MinImageSize = envInt("MIN_IMAGE_DIMENSION", cfg.MinImageSize)

	// 0 disables the ffmpeg process cap
	if v := os.Getenv("FFMPEG_MAX_PROCS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.FFmpegMaxProcs = n
		}
	}

	cfg.ClipDuration = envDuration("CLIP_DURATION", cfg.ClipDuration)
	cfg.ItemDelay = envDuration("ITEM_DELAY", cfg.ItemDelay)
	cfg.DownloadTimeout = envDuration("DOWNLOAD_TIMEOUT", cfg.DownloadTimeout)
	cfg.EncodeTimeout = envDuration("ENCODE_TIMEOUT", cfg.EncodeTimeout)
	cfg.UploadTimeout = envDuration("UPLOAD_TIMEOUT", cfg.UploadTimeout)

	cfg.VisualDedupe = envBool("VISUAL_DEDUPE", cfg.VisualDedupe)
	cfg.EnrichEmbeds = envBool("ENRICH_VIDEO_EMBEDS", cfg.EnrichEmbeds)
	cfg.RunOnStart = envBool("RUN_ON_START", cfg.RunOnStart)

	// Load PostsChatID from env (both spellings are in use)
	if v := firstNonEmpty(os.Getenv("POSTS_CHATID"), os.Getenv("POSTS_CHAT_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.PostsChatID = n
		}
	}

	if cfg.WPBaseURL == "" {
		return cfg, errors.New("WP_BASE_URL is required")
	}
	if cfg.S3Endpoint == "" || cfg.S3Region == "" || cfg.S3Bucket == "" || cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return cfg, errors.New("S3_* env vars are required")
	}
	if cfg.ClipDuration <= 0 {
		return cfg, errors.New("CLIP_DURATION must be positive")
	}
	// video meta reports durations in whole seconds
	if cfg.ClipDuration%time.Second != 0 {
		return cfg, fmt.Errorf("CLIP_DURATION must be a whole number of seconds, got %s", cfg.ClipDuration)
	}
	if cfg.ConcatBatchSize < 2 {
		return cfg, errors.New("CONCAT_BATCH_SIZE must be at least 2")
	}
	return cfg, nil
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
