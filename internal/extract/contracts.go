package extract

import "context"

// Recognizer turns one uploaded file into a text blob.
// Any error means the scan could not be read at all.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, mimeType string) (string, error)
}

// RecognizerFunc adapts a plain function to Recognizer.
type RecognizerFunc func(ctx context.Context, data []byte, mimeType string) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	return f(ctx, data, mimeType)
}
