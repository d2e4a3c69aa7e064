package s3

import "testing"

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name string
		b    urlBuilder
		key  string
		want string
	}{
		{
			name: "explicit public base",
			b:    urlBuilder{publicBase: "https://cdn.example.com/", bucket: "media", pathStyle: true},
			key:  "videos/pasta-night-1700000000000.mp4",
			want: "https://cdn.example.com/videos/pasta-night-1700000000000.mp4",
		},
		{
			name: "aws virtual hosted",
			b:    urlBuilder{endpoint: "https://s3.eu-west-1.amazonaws.com", bucket: "media", region: "eu-west-1"},
			key:  "videos/a.mp4",
			want: "https://media.s3.eu-west-1.amazonaws.com/videos/a.mp4",
		},
		{
			name: "path style endpoint",
			b:    urlBuilder{endpoint: "https://minio.internal:9000/", bucket: "media", pathStyle: true},
			key:  "/videos/a b.mp4",
			want: "https://minio.internal:9000/media/videos/a%20b.mp4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.b.build(tt.key); got != tt.want {
				t.Errorf("build(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
