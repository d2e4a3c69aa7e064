package content

import "article-video-gen/internal/model"

// Defaults is the fallback profile applied to every reshaped post.
type Defaults struct {
	Title      string
	AuthorName string
	// AltFromTitle fills missing image alt text with the post title.
	AltFromTitle bool
}

var DefaultProfile = Defaults{
	Title:        "Untitled",
	AuthorName:   "Unknown",
	AltFromTitle: true,
}

// Apply merges d into p. Fields already set on p win.
func (d Defaults) Apply(p model.Post) model.Post {
	if p.Title == "" {
		p.Title = d.Title
	}
	if p.Author.Name == "" {
		p.Author.Name = d.AuthorName
	}
	if p.Categories == nil {
		p.Categories = []model.Term{}
	}
	if p.Tags == nil {
		p.Tags = []model.Term{}
	}
	p.Images = append([]model.RawImage{}, p.Images...)
	for i := range p.Images {
		img := &p.Images[i]
		if img.Alt == "" && d.AltFromTitle {
			img.Alt = p.Title
		}
		if img.Title == "" {
			img.Title = img.Alt
		}
	}
	if p.Featured != nil {
		f := *p.Featured
		if f.Alt == "" && d.AltFromTitle {
			f.Alt = p.Title
		}
		p.Featured = &f
	}
	return p
}
