package content

import (
	"reflect"
	"testing"
)

func TestExtractImagesGalleryLinks(t *testing.T) {
	html := `<div class="gallery">
  <a href="https://cdn.example.com/full-1.jpg"><img src="https://cdn.example.com/full-1-150x150.jpg" width="150" height="150"></a>
  <a href="https://blog.example.com/attachment/2/"><img src="https://cdn.example.com/2.jpg" width="1024" height="768" title="Second"></a>
  <img src="data:image/gif;base64,R0lGOD" data-lazy-src="https://cdn.example.com/lazy.png">
  <img alt="no source">
</div>`

	got := ExtractImages(html, "https://blog.example.com")
	if len(got) != 3 {
		t.Fatalf("expected 3 images, got %d: %+v", len(got), got)
	}
	if got[0].URL != "https://cdn.example.com/full-1.jpg" || got[0].Width != nil {
		t.Errorf("gallery link not followed: %+v", got[0])
	}
	if got[1].URL != "https://cdn.example.com/2.jpg" || got[1].Width == nil || *got[1].Width != 1024 || got[1].Title != "Second" {
		t.Errorf("non-image link should keep thumbnail: %+v", got[1])
	}
	if got[2].URL != "https://cdn.example.com/lazy.png" {
		t.Errorf("lazy source not used: %+v", got[2])
	}
}

func TestExtractImagesEmpty(t *testing.T) {
	if got := ExtractImages("   ", ""); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestExtractYouTubeIDs(t *testing.T) {
	html := `<iframe src="https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ?rel=0"></iframe>
<figure class="wp-block-embed"><div class="wp-block-embed__wrapper">
https://youtu.be/9bZkp7q19f0
</div></figure>
<iframe src="https://www.youtube.com/embed/dQw4w9WgXcQ"></iframe>
<iframe src="https://player.vimeo.com/video/1"></iframe>`

	got := ExtractYouTubeIDs(html)
	want := []string{"dQw4w9WgXcQ", "9bZkp7q19f0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractYouTubeIDs = %v, want %v", got, want)
	}
}
