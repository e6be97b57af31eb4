package upload

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eugener/gatekeeper/internal"
)

func TestPrepare_NoUploadFieldsEncodesJSON(t *testing.T) {
	t.Parallel()
	desc := &gateway.MethodDescriptor{UploadFields: []string{"photo"}}
	params := map[string]any{"chat_id": float64(1), "caption": "hi"}

	p, err := Prepare(desc, params)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if p.Encoding != "application/json" {
		t.Errorf("Encoding = %q, want application/json", p.Encoding)
	}
	var decoded map[string]any
	if err := json.Unmarshal(p.Body, &decoded); err != nil {
		t.Fatalf("body not valid JSON: %v", err)
	}
}

func TestPrepare_RemoteURLPassthrough(t *testing.T) {
	t.Parallel()
	desc := &gateway.MethodDescriptor{UploadFields: []string{"photo"}}
	params := map[string]any{"photo": "https://example.com/cat.png"}

	p, err := Prepare(desc, params)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if p.NormalisedParams["photo"] != "https://example.com/cat.png" {
		t.Errorf("photo = %v, want unchanged URL", p.NormalisedParams["photo"])
	}
	if p.Encoding != "application/json" {
		t.Errorf("Encoding = %q, want application/json (no local files)", p.Encoding)
	}
}

func TestPrepare_PlatformIDPassthrough(t *testing.T) {
	t.Parallel()
	desc := &gateway.MethodDescriptor{UploadFields: []string{"photo"}}
	id := "AgACAgIAAxkBAAIBY2SomeFileIdHere123"
	params := map[string]any{"photo": id}

	p, err := Prepare(desc, params)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if p.NormalisedParams["photo"] != id {
		t.Errorf("photo = %v, want unchanged platform id", p.NormalisedParams["photo"])
	}
}

func TestPrepare_LocalFileTriggersMultipart(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "cat.png")
	if err := os.WriteFile(path, []byte("fake-png-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	desc := &gateway.MethodDescriptor{UploadFields: []string{"photo"}}
	params := map[string]any{"chat_id": float64(1), "photo": path}

	p, err := Prepare(desc, params)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if p.Encoding != "multipart/form-data" {
		t.Errorf("Encoding = %q, want multipart/form-data", p.Encoding)
	}
	if !strings.HasPrefix(p.ContentType, "multipart/form-data; boundary=") {
		t.Errorf("ContentType = %q, want multipart boundary header", p.ContentType)
	}
	if p.NormalisedParams["photo"] != "attach://photo" {
		t.Errorf("photo = %v, want attach://photo", p.NormalisedParams["photo"])
	}
	if !strings.Contains(string(p.Body), "fake-png-bytes") {
		t.Error("expected file content embedded in multipart body")
	}
}

func TestPrepare_FileSchemePrefix(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("pdf-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	desc := &gateway.MethodDescriptor{UploadFields: []string{"document"}}
	params := map[string]any{"document": "file://" + path}

	p, err := Prepare(desc, params)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if p.Encoding != "multipart/form-data" {
		t.Fatalf("Encoding = %q, want multipart/form-data", p.Encoding)
	}
}

func TestPrepare_MissingLocalFileFails(t *testing.T) {
	t.Parallel()
	desc := &gateway.MethodDescriptor{UploadFields: []string{"photo"}}
	params := map[string]any{"photo": "file:///does/not/exist.png"}

	_, err := Prepare(desc, params)
	if err == nil {
		t.Fatal("expected error for missing local file")
	}
	var pathErr *PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("error = %v, want *PathError", err)
	}
}

func TestPrepare_NestedObjectDescent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "sticker.webp")
	if err := os.WriteFile(path, []byte("sticker-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	desc := &gateway.MethodDescriptor{NestedUpload: []string{"input_sticker"}}
	params := map[string]any{
		"input_sticker": map[string]any{"sticker": path, "emoji_list": []any{"😀"}},
	}

	p, err := Prepare(desc, params)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	nested := p.NormalisedParams["input_sticker"].(map[string]any)
	if nested["sticker"] != "attach://sticker" {
		t.Errorf("sticker = %v, want attach://sticker", nested["sticker"])
	}
}

func TestPrepare_NestedArrayDescent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "photo1.jpg")
	if err := os.WriteFile(path, []byte("photo-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	desc := &gateway.MethodDescriptor{NestedUpload: []string{"media"}}
	params := map[string]any{
		"media": []any{
			map[string]any{"type": "photo", "media": path},
			map[string]any{"type": "photo", "media": "https://example.com/b.jpg"},
		},
	}

	p, err := Prepare(desc, params)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	media := p.NormalisedParams["media"].([]any)
	first := media[0].(map[string]any)
	if first["media"] != "attach://media_0" {
		t.Errorf("media[0].media = %v, want attach://media_0", first["media"])
	}
	second := media[1].(map[string]any)
	if second["media"] != "https://example.com/b.jpg" {
		t.Errorf("media[1].media = %v, want unchanged URL", second["media"])
	}
}
