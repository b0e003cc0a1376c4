package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"dir/sub/photo.jpg", "photo.jpg"},
		{"..\\..\\evil.exe", "evil.exe"},
		{"my photo (1).png", "my_photo__1_.png"},
		{"", ""},
		{"..", ""},
		{"Ünïcode.pdf", "n_code.pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), "input %q", tt.in)
	}
}

func TestKindFromContentType(t *testing.T) {
	assert.Equal(t, "image", kindFromContentType("image/png"))
	assert.Equal(t, "video", kindFromContentType("video/mp4"))
	assert.Equal(t, "document", kindFromContentType("application/pdf"))
	assert.Equal(t, "document", kindFromContentType(""))
}
