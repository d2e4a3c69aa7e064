package content

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"article-video-gen/internal/model"
)

const wpTimeLayout = "2006-01-02T15:04:05"

func decodePost(r gjson.Result, baseURL string) model.Post {
	p := model.Post{
		ID:       r.Get("id").Int(),
		Slug:     r.Get("slug").String(),
		Link:     r.Get("link").String(),
		Title:    plainText(r.Get("title.rendered").String()),
		Excerpt:  plainText(r.Get("excerpt.rendered").String()),
		Content:  r.Get("content.rendered").String(),
		Date:     parseWPTime(r.Get("date_gmt").String()),
		Modified: parseWPTime(r.Get("modified_gmt").String()),
	}

	embedded := r.Get("_embedded")
	if a := embedded.Get("author.0"); a.Exists() {
		p.Author = model.Author{
			ID:     a.Get("id").Int(),
			Name:   a.Get("name").String(),
			Slug:   a.Get("slug").String(),
			Avatar: a.Get("avatar_urls.96").String(),
		}
	} else {
		p.Author.ID = r.Get("author").Int()
	}

	for _, group := range embedded.Get("wp:term").Array() {
		for _, t := range group.Array() {
			term := model.Term{ID: t.Get("id").Int(), Name: plainText(t.Get("name").String()), Slug: t.Get("slug").String()}
			switch t.Get("taxonomy").String() {
			case "category":
				p.Categories = append(p.Categories, term)
			case "post_tag":
				p.Tags = append(p.Tags, term)
			}
		}
	}

	if m := embedded.Get("wp:featuredmedia.0"); m.Exists() && m.Get("source_url").String() != "" {
		p.Featured = &model.RawImage{
			URL:     m.Get("source_url").String(),
			Alt:     m.Get("alt_text").String(),
			Title:   plainText(m.Get("title.rendered").String()),
			Caption: plainText(m.Get("caption.rendered").String()),
			Width:   optionalInt(m.Get("media_details.width")),
			Height:  optionalInt(m.Get("media_details.height")),
		}
	}

	p.Images = ExtractImages(p.Content, baseURL)
	if p.Featured != nil {
		p.Images = append([]model.RawImage{*p.Featured}, p.Images...)
	}
	return p
}

func optionalInt(r gjson.Result) *int {
	if !r.Exists() || r.Int() <= 0 {
		return nil
	}
	n := int(r.Int())
	return &n
}

func parseWPTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(wpTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// plainText strips markup and decodes entities from rendered WordPress fields.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
