package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"article-video-gen/internal"
	"article-video-gen/internal/logging"
	"article-video-gen/internal/s3"
	"article-video-gen/internal/scheduler"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	var (
		syncVideos     = flag.Bool("sync-videos", false, "Synchronize videos.json with the S3 videos/ folder")
		resetProcessed = flag.Bool("reset-processed", false, "Clear the processed set so the next catalog run regenerates every post")
	)
	flag.Parse()

	if !*syncVideos && !*resetProcessed {
		fmt.Println("Usage: sync [-sync-videos] [-reset-processed]")
		fmt.Println()
		fmt.Println("Options:")
		fmt.Println("  -sync-videos       Synchronize videos.json with the S3 videos/ folder")
		fmt.Println("  -reset-processed   Clear the processed set (S3 or Redis)")
		os.Exit(1)
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New("sync.log")
	if err != nil {
		fmt.Printf("Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	s3Client, err := s3.New(cfg)
	if err != nil {
		log.Errorf("Error creating S3 client: %v", err)
		os.Exit(1)
	}

	ctx := context.Background()
	failed := false

	if *syncVideos {
		fmt.Printf("=== Synchronizing %s with S3 %s folder ===\n", cfg.VideosJSONKey, cfg.VideosPrefix)
		rep, err := scheduler.SyncVideosIndex(ctx, s3Client, cfg.VideosJSONKey, cfg.VideosPrefix, log)
		if err != nil {
			log.Errorf("Error syncing videos: %v", err)
			failed = true
		} else {
			fmt.Printf("Videos synchronized: %d records before, %d removed, %d added, %d now\n",
				rep.Before, rep.Removed, rep.Added, rep.After)
		}
	}

	if *resetProcessed {
		fmt.Println("=== Clearing processed set ===")
		var store scheduler.ProcessedStore = scheduler.NewJSONProcessedStore(s3Client, cfg.ProcessedJSONKey)
		if cfg.RedisURL != "" {
			rs, err := scheduler.NewRedisProcessedStore(cfg.RedisURL, scheduler.RedisProcessedKey)
			if err != nil {
				log.Errorf("Error connecting to redis: %v", err)
				os.Exit(1)
			}
			defer rs.Close()
			store = rs
		}
		if err := store.Clear(ctx, time.Now()); err != nil {
			log.Errorf("Error clearing processed set: %v", err)
			failed = true
		} else {
			fmt.Println("Processed set cleared")
		}
	}

	if failed {
		os.Exit(1)
	}
	fmt.Println("=== Done ===")
}
