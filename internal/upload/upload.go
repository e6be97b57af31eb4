// Package upload implements the gateway's upload encoder (component I):
// local-file detection across a method's declared upload-bearing
// parameters, and multipart assembly when any local file is found.
package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/eugener/gatekeeper/internal"
)

// Prepared is the result of a successful Prepare call.
type Prepared struct {
	Encoding         string // "application/json" or "multipart/form-data"; ContentType carries the boundary
	Body             []byte
	ContentType      string
	NormalisedParams map[string]any
}

var platformIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{20,}$`)

type valueKind int

const (
	kindPassthrough valueKind = iota
	kindLocalFile
	kindRemoteURL
	kindPlatformID
)

func classifyString(s string) (kind valueKind, rewritten string, localPath string) {
	if after, ok := strings.CutPrefix(s, "file://"); ok {
		return kindLocalFile, "", after
	}
	if filepath.IsAbs(s) {
		if info, err := os.Stat(s); err == nil && info.Mode().IsRegular() {
			return kindLocalFile, "", s
		}
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return kindRemoteURL, s, ""
	}
	if !strings.ContainsAny(s, "/:") && platformIDPattern.MatchString(s) {
		return kindPlatformID, s, ""
	}
	return kindPassthrough, s, ""
}

type localFile struct {
	slot string
	path string
}

// PathError is returned by Prepare when a local file referenced by a
// parameter does not exist or is not a regular file. The pipeline maps
// this to a synthesised {ok:false, errorCode:400} envelope.
type PathError struct {
	Slot string
	Path string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("upload: %s: path %q does not exist or is not a regular file", e.Slot, e.Path)
}

// Prepare encodes params for method per desc's declared upload slots.
func Prepare(desc *gateway.MethodDescriptor, params map[string]any) (Prepared, error) {
	if desc == nil {
		return encodeJSON(params)
	}

	normalised := make(map[string]any, len(params))
	for k, v := range params {
		normalised[k] = v
	}

	var files []localFile

	for _, name := range desc.UploadFields {
		v, ok := normalised[name]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		kind, rewritten, path := classifyString(s)
		if kind == kindLocalFile {
			files = append(files, localFile{slot: name, path: path})
			normalised[name] = "attach://" + name
		} else {
			normalised[name] = rewritten
		}
	}

	for _, name := range desc.NestedUpload {
		v, ok := normalised[name]
		if !ok {
			continue
		}
		switch x := v.(type) {
		case []any:
			rewritten, fs := processNestedArray(name, x)
			normalised[name] = rewritten
			files = append(files, fs...)
		case map[string]any:
			rewritten, fs := processNestedObject(x)
			normalised[name] = rewritten
			files = append(files, fs...)
		}
	}

	for _, f := range files {
		info, err := os.Stat(f.path)
		if err != nil || !info.Mode().IsRegular() {
			return Prepared{}, &PathError{Slot: f.slot, Path: f.path}
		}
	}

	if len(files) == 0 {
		return encodeJSON(normalised)
	}
	return encodeMultipart(normalised, files)
}

// processNestedArray descends one level into an array of descriptors
// (e.g. sendMediaGroup's "media" list). Each element is either a plain
// string (sticker lists) or an object carrying a "media" field (Telegram
// InputMedia-style shapes); gjson pulls that field out of the marshaled
// element without a full struct unmarshal.
func processNestedArray(slot string, arr []any) ([]any, []localFile) {
	rewritten := make([]any, len(arr))
	var files []localFile

	for i, item := range arr {
		attachName := fmt.Sprintf("%s_%d", slot, i)

		if s, ok := item.(string); ok {
			kind, rewrittenStr, path := classifyString(s)
			if kind == kindLocalFile {
				files = append(files, localFile{slot: attachName, path: path})
				rewritten[i] = "attach://" + attachName
			} else {
				rewritten[i] = rewrittenStr
			}
			continue
		}

		obj, ok := item.(map[string]any)
		if !ok {
			rewritten[i] = item
			continue
		}

		data, err := json.Marshal(obj)
		if err != nil {
			rewritten[i] = item
			continue
		}
		mediaVal := gjson.GetBytes(data, "media")
		if mediaVal.Exists() && mediaVal.Type == gjson.String {
			kind, rewrittenStr, path := classifyString(mediaVal.String())
			clone := cloneMap(obj)
			if kind == kindLocalFile {
				files = append(files, localFile{slot: attachName, path: path})
				clone["media"] = "attach://" + attachName
			} else {
				clone["media"] = rewrittenStr
			}
			rewritten[i] = clone
		} else {
			rewritten[i] = obj
		}
	}
	return rewritten, files
}

// processNestedObject descends into an object carrying sticker/photo/
// animation sub-fields, rewriting any local-file entries in place.
func processNestedObject(obj map[string]any) (map[string]any, []localFile) {
	clone := cloneMap(obj)
	var files []localFile
	for _, subKey := range []string{"sticker", "photo", "animation"} {
		s, ok := clone[subKey].(string)
		if !ok {
			continue
		}
		kind, rewrittenStr, path := classifyString(s)
		if kind == kindLocalFile {
			files = append(files, localFile{slot: subKey, path: path})
			clone[subKey] = "attach://" + subKey
		} else {
			clone[subKey] = rewrittenStr
		}
	}
	return clone, files
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func encodeJSON(params map[string]any) (Prepared, error) {
	body, err := canonicalJSON(params)
	if err != nil {
		return Prepared{}, fmt.Errorf("upload: encode params: %w", err)
	}
	return Prepared{
		Encoding:         "application/json",
		Body:             body,
		ContentType:      "application/json",
		NormalisedParams: params,
	}, nil
}

// canonicalJSON marshals params with keys sorted for a stable wire form.
func canonicalJSON(params map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(params[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var extMIMETypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".pdf":  "application/pdf",
	".webm": "video/webm",
	".tgs":  "application/x-tgsticker",
}

func mimeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extMIMETypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func encodeMultipart(params map[string]any, files []localFile) (Prepared, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		text, err := textValue(params[k])
		if err != nil {
			return Prepared{}, fmt.Errorf("upload: stringify %s: %w", k, err)
		}
		if err := w.WriteField(k, text); err != nil {
			return Prepared{}, fmt.Errorf("upload: write field %s: %w", k, err)
		}
	}

	for _, f := range files {
		if err := writeFilePart(w, f); err != nil {
			return Prepared{}, err
		}
	}

	if err := w.Close(); err != nil {
		return Prepared{}, fmt.Errorf("upload: close multipart writer: %w", err)
	}

	return Prepared{
		Encoding:         "multipart/form-data",
		Body:             buf.Bytes(),
		ContentType:      w.FormDataContentType(),
		NormalisedParams: params,
	}, nil
}

func writeFilePart(w *multipart.Writer, f localFile) error {
	file, err := os.Open(f.path)
	if err != nil {
		return &PathError{Slot: f.slot, Path: f.path}
	}
	defer file.Close()

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, f.slot, filepath.Base(f.path)))
	header.Set("Content-Type", mimeForPath(f.path))

	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("upload: create part %s: %w", f.slot, err)
	}
	if _, err := part.ReadFrom(file); err != nil {
		return fmt.Errorf("upload: copy file %s: %w", f.slot, err)
	}
	return nil
}

func textValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
