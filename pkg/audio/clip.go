package audio

import "errors"

// Encodings used on each side of the translation service. The client
// captures opus-in-webm and the backend answers with mp3.
const (
	EncodingOpusWebM = "audio/webm;codecs=opus"
	EncodingMP3      = "audio/mpeg"
)

// Clip is a single finished piece of audio, either captured locally or
// received from the server. It is immutable once built and lives only for
// the duration of one transmission or one playback.
type Clip struct {
	Data     []byte
	Encoding string
}

var ErrNoChunks = errors.New("no audio chunks")

// Merge concatenates capture chunks, in order, into one clip payload.
// An empty chunk sequence is an error so that silent captures are never
// turned into a clip.
func Merge(chunks [][]byte) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	var size int
	for _, c := range chunks {
		size += len(c)
	}
	if size == 0 {
		return nil, ErrNoChunks
	}

	merged := make([]byte, 0, size)
	for _, c := range chunks {
		merged = append(merged, c...)
	}
	return merged, nil
}
