package content

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"article-video-gen/internal/model"
)

var imageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// ExtractImages returns the <img> elements of rendered post HTML in document
// order. Gallery thumbnails that link to a full-size file are replaced by the
// linked file, whose dimensions are then unknown.
func ExtractImages(html, baseURL string) []model.RawImage {
	if strings.TrimSpace(html) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []model.RawImage
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := imageSource(s)
		if src == "" {
			return
		}
		img := model.RawImage{
			URL:     resolveURL(baseURL, src),
			Alt:     strings.TrimSpace(s.AttrOr("alt", "")),
			Title:   strings.TrimSpace(s.AttrOr("title", "")),
			Width:   attrInt(s, "width"),
			Height:  attrInt(s, "height"),
			Caption: strings.Join(strings.Fields(s.Closest("figure").Find("figcaption").First().Text()), " "),
		}
		if href, ok := s.Closest("a").Attr("href"); ok && isImageURL(href) {
			full := resolveURL(baseURL, href)
			if full != img.URL {
				img.URL = full
				img.Width, img.Height = nil, nil
			}
		}
		out = append(out, img)
	})
	return out
}

func imageSource(s *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-orig-file"} {
		v := strings.TrimSpace(s.AttrOr(attr, ""))
		if v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

func attrInt(s *goquery.Selection, name string) *int {
	v, ok := s.Attr(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func isImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return lo.Contains(imageExts, strings.ToLower(path.Ext(u.Path)))
}

func resolveURL(baseURL, ref string) string {
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() || baseURL == "" {
		return ref
	}
	b, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

var youtubeIDRe = regexp.MustCompile(`(?:youtube(?:-nocookie)?\.com/(?:embed/|watch\?v=|shorts/|v/)|youtu\.be/)([A-Za-z0-9_-]{11})`)

// ExtractYouTubeIDs finds YouTube videos embedded via iframes or oEmbed blocks.
func ExtractYouTubeIDs(html string) []string {
	if strings.TrimSpace(html) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var ids []string
	collect := func(s string) {
		for _, m := range youtubeIDRe.FindAllStringSubmatch(s, -1) {
			ids = append(ids, m[1])
		}
	}
	doc.Find("iframe").Each(func(_ int, s *goquery.Selection) {
		collect(s.AttrOr("src", ""))
		collect(s.AttrOr("data-src", ""))
	})
	doc.Find(".wp-block-embed__wrapper").Each(func(_ int, s *goquery.Selection) {
		collect(s.Text())
	})
	return lo.Uniq(ids)
}
