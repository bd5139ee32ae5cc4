package constants

import "strings"

// File formats understood by the OCR engine.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	TXT   = "TXT"
)

// AllowedExtensions holds the default allowed file extensions for report uploads.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"heic": {},
	"heif": {},
	"tif":  {},
	"tiff": {},
	"txt":  {},
}

var extToMIME = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"heic": "image/heic",
	"heif": "image/heif",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"txt":  "text/plain",
}

var mimeToExt = map[string]string{
	"application/pdf": "pdf",
	"image/jpeg":      "jpg",
	"image/jpg":       "jpg",
	"image/png":       "png",
	"image/heic":      "heic",
	"image/heif":      "heif",
	"image/tiff":      "tif",
	"text/plain":      "txt",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMIME lowercases a MIME type and strips parameters such as charset.
func NormalizeMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// MIMEForExt returns the MIME type for an extension, or "" when unknown.
func MIMEForExt(ext string) string {
	return extToMIME[NormalizeExt(ext)]
}

// ExtForMIME returns the canonical extension (without dot) for a MIME type, or "".
func ExtForMIME(mimeType string) string {
	return mimeToExt[NormalizeMIME(mimeType)]
}

// MapExtToFormat maps an extension to PDF, IMAGE or TXT. Unknown -> "".
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "heic", "heif", "tif", "tiff":
		return IMAGE
	case "txt":
		return TXT
	default:
		return ""
	}
}

// MapMIMEToFormat maps a MIME type to PDF, IMAGE or TXT. Unknown -> "".
func MapMIMEToFormat(mimeType string) string {
	return MapExtToFormat(ExtForMIME(mimeType))
}

// IsHEICExt reports whether ext is an Apple HEIC/HEIF image.
func IsHEICExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "heic", "heif":
		return true
	}
	return false
}
