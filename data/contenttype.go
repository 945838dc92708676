package data

import (
	"path"
	"strings"
)

type ContentType string

const (
	ContentTypeTextPlain         = "text/plain"
	ContentTypeTextMarkdown      = "text/markdown"
	ContentTypeTextHTML          = "text/html"
	ContentTypeTextCSS           = "text/css"
	ContentTypeTextJavaScript    = "text/javascript"
	ContentTypeTextCSV           = "text/csv"
	ContentTypeImageJPEG         = "image/jpeg"
	ContentTypeImagePNG          = "image/png"
	ContentTypeImageGIF          = "image/gif"
	ContentTypeImageWebP         = "image/webp"
	ContentTypeImageSVGXML       = "image/svg+xml"
	ContentTypeAudioMpeg         = "audio/mpeg"
	ContentTypeAudioWAV          = "audio/wav"
	ContentTypeVideoMP4          = "video/mp4"
	ContentTypeVideoWebM         = "video/webm"
	ContentTypeApplicationPDF    = "application/pdf"
	ContentTypeApplicationZip    = "application/zip"
	ContentTypeApplicationGZip   = "application/gzip"
	ContentTypeApplicationXTar   = "application/x-tar"
	ContentTypeApplicationJson   = "application/json"
	ContentTypeApplicationXML    = "application/xml"
	ContentTypeApplicationYAML   = "application/yaml"
	ContentTypeApplicationSQL    = "application/sql"
	ContentTypeApplicationStream = "application/octet-stream"
	// ContentTypeDirectory is the marker some object stores use for folder objects.
	ContentTypeDirectory = "application/x-directory"
)

// ExtensionToMIME maps lower-case extensions (without dot) to MIME types.
var ExtensionToMIME = map[string]ContentType{
	"txt":  ContentTypeTextPlain,
	"log":  ContentTypeTextPlain,
	"md":   ContentTypeTextMarkdown,
	"html": ContentTypeTextHTML,
	"htm":  ContentTypeTextHTML,
	"css":  ContentTypeTextCSS,
	"js":   ContentTypeTextJavaScript,
	"csv":  ContentTypeTextCSV,
	"jpg":  ContentTypeImageJPEG,
	"jpeg": ContentTypeImageJPEG,
	"png":  ContentTypeImagePNG,
	"gif":  ContentTypeImageGIF,
	"webp": ContentTypeImageWebP,
	"svg":  ContentTypeImageSVGXML,
	"mp3":  ContentTypeAudioMpeg,
	"wav":  ContentTypeAudioWAV,
	"mp4":  ContentTypeVideoMP4,
	"webm": ContentTypeVideoWebM,
	"pdf":  ContentTypeApplicationPDF,
	"zip":  ContentTypeApplicationZip,
	"gz":   ContentTypeApplicationGZip,
	"tar":  ContentTypeApplicationXTar,
	"json": ContentTypeApplicationJson,
	"xml":  ContentTypeApplicationXML,
	"yaml": ContentTypeApplicationYAML,
	"yml":  ContentTypeApplicationYAML,
	"sql":  ContentTypeApplicationSQL,
}

// Extension returns the extension of name without the leading dot.
// Names without a dot, and dotfiles like ".env", have no extension.
// The folder sentinel is never returned for a file name.
func Extension(name string) string {
	ext := path.Ext(name)
	if ext == "" || ext == name || ext[1:] == FolderExtension {
		return ""
	}
	return ext[1:]
}

// MIMEType returns the MIME type for a file name, defaulting to octet-stream.
func MIMEType(name string) string {
	if mimeType, exists := ExtensionToMIME[strings.ToLower(Extension(name))]; exists {
		return string(mimeType)
	}

	return ContentTypeApplicationStream
}
