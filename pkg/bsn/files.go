package bsn

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// storage values accepted by the file endpoints.
const storageTag = "oneof=sd usb ssd"

// extensions uploaded as plain text regardless of their MIME type
var textExtensions = map[string]bool{
	"brs":  true,
	"json": true,
	"js":   true,
	"xml":  true,
	"rtf":  true,
}

// FileQuery selects what GetDeviceFiles returns.
type FileQuery struct {
	// Storage is sd, usb or ssd. Empty means sd.
	Storage string `json:"storage" validate:"omitempty,oneof=sd usb ssd"`
	// Path is a file or directory on the storage. Empty lists the root.
	Path string `json:"path"`
	// Raw returns the raw directory listing.
	Raw bool `json:"raw"`
	// Contents returns the contents of the file at Path.
	Contents bool `json:"contents"`
}

// GetDeviceFiles lists a directory or reads a file on the player.
func (c *Client) GetDeviceFiles(ctx context.Context, serial string, query FileQuery) (json.RawMessage, error) {
	if err := c.check(query); err != nil {
		return nil, err
	}
	if query.Raw && query.Contents {
		return nil, badArgument("raw", "cannot be combined with contents")
	}

	path := joinPath("files", orDefaultString(query.Storage, "sd"))
	if p := strings.TrimLeft(query.Path, "/"); p != "" {
		path = strings.TrimSuffix(path+joinPath(p), "/")
	}

	q := url.Values{}
	if query.Raw {
		q.Set("raw", "true")
	}
	if query.Contents {
		q.Set("contents", "true")
	}

	return c.rdws(ctx, http.MethodGet, serial, path, q, nil)
}

// Upload describes a local file to copy to the player.
type Upload struct {
	// LocalPath is the file to read.
	LocalPath string `json:"localPath" validate:"required"`
	// Storage is sd, usb or ssd. Empty means sd.
	Storage string `json:"storage" validate:"omitempty,oneof=sd usb ssd"`
	// Dir is the destination directory. Empty means the storage root.
	Dir string `json:"dir"`
	// Name is the destination file name. Empty keeps the local name.
	Name string `json:"name" validate:"excludesall=/\\"`
	// Type is the MIME type. Empty detects it from the extension and, failing
	// that, from the contents.
	Type string `json:"type"`
}

type uploadFile struct {
	FileName     string `json:"fileName"`
	FileContents string `json:"fileContents"`
	FileType     string `json:"fileType"`
}

// UploadDeviceFile copies a local file to the player. Text files are sent
// verbatim, everything else as a base64 data URL.
func (c *Client) UploadDeviceFile(ctx context.Context, serial string, up Upload) (json.RawMessage, error) {
	if err := c.check(up); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(up.LocalPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, notFound("localPath", "%q does not exist", up.LocalPath)
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", up.LocalPath, err)
	}

	storage := orDefaultString(up.Storage, "sd")
	name := orDefaultString(up.Name, filepath.Base(up.LocalPath))
	fileType := up.Type
	if fileType == "" {
		fileType = detectType(up.LocalPath, content)
	}

	ext := strings.TrimPrefix(filepath.Ext(up.LocalPath), ".")
	contents := "data:" + fileType + ";base64," + base64.StdEncoding.EncodeToString(content)
	if (strings.HasPrefix(fileType, "text/") || textExtensions[ext]) && utf8.Valid(content) {
		contents = string(content)
	}

	uploadPath := "/" + storage
	path := joinPath("files", storage)
	if dir := strings.Trim(up.Dir, "/"); dir != "" {
		uploadPath += "/" + dir
		path += joinPath(dir)
	}

	data := map[string]any{
		"fileUploadPath": uploadPath,
		"files": []uploadFile{{
			FileName:     name,
			FileContents: contents,
			FileType:     fileType,
		}},
	}

	return c.rdws(ctx, http.MethodPut, serial, path, nil, data)
}

// detectType guesses the MIME type from the extension, then the content.
func detectType(path string, content []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		mediaType, _, err := mime.ParseMediaType(t)
		if err == nil {
			return mediaType
		}
	}
	if len(content) == 0 {
		return "application/octet-stream"
	}
	mediaType, _, _ := mime.ParseMediaType(mimetype.Detect(content).String())
	return orDefaultString(mediaType, "application/octet-stream")
}

// CreateDeviceDirectory creates dir on the given storage.
func (c *Client) CreateDeviceDirectory(ctx context.Context, serial, storage, dir string) (json.RawMessage, error) {
	path, err := c.filePath(storage, "dir", dir)
	if err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodPut, serial, path, nil, nil)
}

// RenameDeviceFile renames the file at path to newName within its directory.
func (c *Client) RenameDeviceFile(ctx context.Context, serial, storage, path, newName string) (json.RawMessage, error) {
	if err := c.checkVar("newName", newName, `required,excludesall=/\`); err != nil {
		return nil, err
	}
	target, err := c.filePath(storage, "path", path)
	if err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodPost, serial, target, nil, map[string]any{"name": newName})
}

// DeleteDeviceFile deletes the file or directory at path.
func (c *Client) DeleteDeviceFile(ctx context.Context, serial, storage, path string) (json.RawMessage, error) {
	target, err := c.filePath(storage, "path", path)
	if err != nil {
		return nil, err
	}
	return c.rdws(ctx, http.MethodDelete, serial, target, nil, nil)
}

func (c *Client) filePath(storage, field, path string) (string, error) {
	storage = orDefaultString(storage, "sd")
	if err := c.checkVar("storage", storage, storageTag); err != nil {
		return "", err
	}
	if strings.Trim(path, "/") == "" {
		return "", badArgument(field, "is required")
	}
	return joinPath("files", storage, path), nil
}
