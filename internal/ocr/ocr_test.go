package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fns   map[string]func(args []string) ([]byte, []byte, error)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{fns: map[string]func([]string) ([]byte, []byte, error){}}
}

func (f *fakeRunner) on(name string, fn func(args []string) ([]byte, []byte, error)) *fakeRunner {
	f.fns[name] = fn
	return f
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	f.mu.Unlock()
	fn, ok := f.fns[name]
	if !ok {
		return nil, []byte("not found"), errors.New("exec: " + name + ": not found")
	}
	return fn(args)
}

func (f *fakeRunner) called(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, name+" ") {
			n++
		}
	}
	return n
}

func stdout(s string) func([]string) ([]byte, []byte, error) {
	return func([]string) ([]byte, []byte, error) { return []byte(s), nil, nil }
}

func TestRecognize_PlainText(t *testing.T) {
	r := newFakeRunner()
	e := NewExtractor(Config{}, nil).WithRunner(r)

	res, err := e.Recognize(context.Background(), []byte("Sodium: 150\r\nPotassium:\t\t6.2\r\n"), "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "plain-text", res.Method)
	assert.Equal(t, "Sodium: 150\nPotassium: 6.2", res.Text)
	assert.Empty(t, r.calls)
}

func TestRecognize_Image(t *testing.T) {
	r := newFakeRunner().on("tesseract", stdout("CBC Panel\nWBC: 9.1 K/uL ref 5.5-16.9\n"))
	e := NewExtractor(Config{TessdataDir: "/opt/tessdata"}, nil).WithRunner(r)

	res, err := e.Recognize(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image-ocr", res.Method)
	assert.Equal(t, "eng", res.Language)
	assert.Contains(t, res.Text, "WBC: 9.1")
	require.Len(t, r.calls, 1)
	assert.Contains(t, r.calls[0], "stdout -l eng --tessdata-dir /opt/tessdata")
	assert.Greater(t, res.Confidence, float32(0.5))
}

func TestRecognize_PDFTextLayer(t *testing.T) {
	r := newFakeRunner().on("pdftotext", stdout("Urinalysis 2024-03-02\npH: 6.5 ref 6.0-7.5\nSpecific gravity: 1.030\f"))
	e := NewExtractor(Config{}, nil).WithRunner(r)

	res, err := e.Recognize(context.Background(), []byte("%PDF-1.7"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf-text", res.Method)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, 0, r.called("pdftoppm"))
	assert.Equal(t, 0, r.called("tesseract"))
}

func TestRecognize_ScannedPDFFallsBackToRaster(t *testing.T) {
	r := newFakeRunner().
		on("pdftotext", stdout("  \f")).
		on("pdftoppm", func(args []string) ([]byte, []byte, error) {
			prefix := args[len(args)-1]
			for _, p := range []string{"-1.png", "-2.png"} {
				if err := os.WriteFile(prefix+p, []byte("png"), 0o600); err != nil {
					return nil, nil, err
				}
			}
			return nil, nil, nil
		}).
		on("tesseract", func(args []string) ([]byte, []byte, error) {
			return []byte("page " + filepath.Base(args[0])), nil, nil
		})
	e := NewExtractor(Config{DPI: 200}, nil).WithRunner(r)

	res, err := e.Recognize(context.Background(), []byte("%PDF-1.7"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "page page-1.png\n\npage page-2.png", res.Text)
	assert.Equal(t, 2, r.called("tesseract"))
	assert.Contains(t, r.calls[1], "-r 200 -png")
}

func TestRecognize_MaxPages(t *testing.T) {
	r := newFakeRunner().
		on("pdftotext", stdout("")).
		on("pdftoppm", func(args []string) ([]byte, []byte, error) {
			prefix := args[len(args)-1]
			for _, p := range []string{"-1.png", "-2.png", "-3.png"} {
				_ = os.WriteFile(prefix+p, []byte("png"), 0o600)
			}
			return nil, nil, nil
		}).
		on("tesseract", stdout("text"))
	e := NewExtractor(Config{MaxPages: 1}, nil).WithRunner(r)

	res, err := e.Recognize(context.Background(), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)
	assert.NotEmpty(t, res.Warnings)
}

func TestRecognize_HEIC(t *testing.T) {
	r := newFakeRunner().
		on("magick", func(args []string) ([]byte, []byte, error) {
			return nil, nil, os.WriteFile(args[1], []byte("png"), 0o600)
		}).
		on("tesseract", func(args []string) ([]byte, []byte, error) {
			if filepath.Base(args[0]) != "page.png" {
				return nil, nil, errors.New("expected converted png")
			}
			return []byte("Dental chart"), nil, nil
		})
	e := NewExtractor(Config{HeicConverter: "magick"}, nil).WithRunner(r)

	res, err := e.Recognize(context.Background(), []byte("heic"), "image/heic")
	require.NoError(t, err)
	assert.Equal(t, "Dental chart", res.Text)
}

func TestRecognize_Errors(t *testing.T) {
	e := NewExtractor(Config{}, nil).WithRunner(newFakeRunner())

	_, err := e.Recognize(context.Background(), []byte("x"), "application/zip")
	assert.Error(t, err)

	_, err = e.Recognize(context.Background(), nil, "image/png")
	assert.Error(t, err)

	_, err = e.Recognize(context.Background(), []byte("x"), "image/png")
	assert.ErrorContains(t, err, "tesseract")

	_, err = e.Recognize(context.Background(), []byte("x"), "image/heif")
	assert.ErrorContains(t, err, "HEIC not supported")
}

func TestRecognizeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.TXT")
	require.NoError(t, os.WriteFile(path, []byte("Fecal exam negative"), 0o600))

	res, err := NewExtractor(Config{}, nil).RecognizeFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Fecal exam negative", res.Text)

	_, err = NewExtractor(Config{}, nil).RecognizeFile(context.Background(), filepath.Join(dir, "x.docx"))
	assert.ErrorContains(t, err, "unsupported extension")
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"crlf and tabs", "a\r\nb\tc", "a\nb c"},
		{"spaces", "ALT    45   U/L  ", "ALT 45 U/L"},
		{"ruler lines", "Header\n--------\nBody", "Header\n\nBody"},
		{"blank runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"digits kept", "BUN 05 mg/dL", "BUN 05 mg/dL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestHeuristicConfidence(t *testing.T) {
	assert.Equal(t, float32(0), heuristicConfidence("  "))
	plain := heuristicConfidence("hello world")
	lab := heuristicConfidence("2024-01-05 Glucose 95 mg/dL 70-143")
	assert.Less(t, plain, lab)
	assert.LessOrEqual(t, lab, float32(1))
}
