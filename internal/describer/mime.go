package describer

import (
	"net/http"
	"path/filepath"
	"strings"
)

// imageTypes maps the extensions we upload to their MIME types
var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
}

// ContentType picks the part Content-Type for an upload. The reference
// service rejects parts that are not image/*, so the extension wins over
// sniffing, which cannot recognize HEIC.
func ContentType(name string, data []byte) string {
	if ct, ok := imageTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return http.DetectContentType(data)
}

// IsImage reports whether the file name has a known image extension
func IsImage(name string) bool {
	_, ok := imageTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}
