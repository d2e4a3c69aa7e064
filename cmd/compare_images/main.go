package main

import (
	"crypto/sha256"
	"flag"
	"fmt"
	"log"
	"math/bits"
	"os"

	"article-video-gen/internal/video"
)

func main() {
	image1Path := flag.String("img1", "", "Path to first image")
	image2Path := flag.String("img2", "", "Path to second image")
	flag.Parse()

	if *image1Path == "" || *image2Path == "" {
		log.Fatal("Usage: compare_images -img1 <path1> -img2 <path2>")
	}

	fmt.Printf("Comparing images:\n  Image 1: %s\n  Image 2: %s\n\n", *image1Path, *image2Path)

	hash1, err := fileHash(*image1Path)
	if err != nil {
		log.Fatalf("Failed to read image 1: %v", err)
	}
	hash2, err := fileHash(*image2Path)
	if err != nil {
		log.Fatalf("Failed to read image 2: %v", err)
	}

	fmt.Printf("1. FILE HASH COMPARISON:\n")
	fmt.Printf("   Image 1 SHA256: %s\n", hash1)
	fmt.Printf("   Image 2 SHA256: %s\n", hash2)
	if hash1 == hash2 {
		fmt.Printf("   Result: IDENTICAL FILES\n\n")
	} else {
		fmt.Printf("   Result: different files\n\n")
	}

	c, err := video.CompareImages(*image1Path, *image2Path)
	if err != nil {
		log.Fatalf("Failed to compare images: %v", err)
	}

	fmt.Printf("2. PERCEPTUAL HASH COMPARISON:\n")
	fmt.Printf("   Image 1 central hash: %016x\n", c.CentralA)
	fmt.Printf("   Image 2 central hash: %016x\n", c.CentralB)
	fmt.Printf("   Hamming distance: %d bits\n", bits.OnesCount64(c.CentralA^c.CentralB))
	fmt.Printf("   Hash set match: %v\n", c.HashMatch)
	fmt.Printf("   images4.Similar: %v\n\n", c.Similar)

	fmt.Printf("SUMMARY:\n")
	switch {
	case hash1 == hash2:
		fmt.Printf("  Images are: IDENTICAL (same file)\n")
	case c.Duplicate():
		fmt.Printf("  Images are: DUPLICATES (VISUAL_DEDUPE drops the second one)\n")
	case c.Similar:
		fmt.Printf("  Images are: SIMILAR (hash pre-filter misses, both kept)\n")
	default:
		fmt.Printf("  Images are: DIFFERENT\n")
	}
}

func fileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}
