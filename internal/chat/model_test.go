package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindForMIME(t *testing.T) {
	tests := []struct {
		contentType string
		want        Kind
	}{
		{contentType: "video/mp4", want: KindVideo},
		{contentType: "Video/WebM", want: KindVideo},
		{contentType: "audio/mpeg", want: KindAudio},
		{contentType: "audio/ogg; codecs=opus", want: KindAudio},
		{contentType: "image/png", want: KindFile},
		{contentType: "application/octet-stream", want: KindFile},
		{contentType: "", want: KindFile},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			require.Equal(t, tt.want, KindForMIME(tt.contentType))
		})
	}
}
