package fileops

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"rec/internal/errkind"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")

	if err := WriteFile(path, "", "hello\nworld\n", false); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	content, err := ReadFile(path, "", "")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if content != "hello\nworld\n" {
		t.Fatalf("content = %q", content)
	}
}

func TestWriteFileIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := WriteFile(path, "", "v1", false); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := WriteFile(path, "", "v2", false); err != nil {
		t.Fatalf("WriteFile overwrite: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file in %s, got %d", dir, len(entries))
	}
}

func TestReadFileNotFound(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.txt"), "", "")
	kerr, ok := err.(*errkind.Error)
	if !ok || kerr.Kind != errkind.FileNotFound {
		t.Fatalf("expected FILE_NOT_FOUND, got %v", err)
	}
}

func TestReadFileIsDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadFile(dir, "", "")
	kerr, ok := err.(*errkind.Error)
	if !ok || kerr.Kind != errkind.IsDirectory {
		t.Fatalf("expected IS_DIRECTORY, got %v", err)
	}
}

func TestWriteFileNoCreateParentsFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing-subdir", "f.txt")
	err := WriteFile(path, "", "x", false)
	kerr, ok := err.(*errkind.Error)
	if !ok || kerr.Kind != errkind.NotADirectory {
		t.Fatalf("expected NOT_A_DIRECTORY, got %v", err)
	}
}

func TestWriteFileCreateParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "f.txt")
	if err := WriteFile(path, "", "x", true); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	content, err := ReadFile(path, "", "")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if content != "x" {
		t.Fatalf("content = %q", content)
	}
}

func TestBinaryEncodingRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")

	raw := []byte{0x00, 0x01, 0xff, 0xfe, 'h', 'i', 0x7f, 0x80}
	if err := WriteFile(path, "binary", base64.StdEncoding.EncodeToString(raw), false); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("os.ReadFile: %v", err)
	}
	if string(onDisk) != string(raw) {
		t.Fatalf("on-disk bytes = %v, want %v", onDisk, raw)
	}

	content, err := ReadFile(path, "binary", "")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		t.Fatalf("base64 decode response: %v", err)
	}
	if string(decoded) != string(raw) {
		t.Fatalf("round trip = %v, want %v", decoded, raw)
	}
}

func TestWriteFileInvalidBase64(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	err := WriteFile(path, "binary", "not valid base64!!", false)
	kerr, ok := err.(*errkind.Error)
	if !ok || kerr.Kind != errkind.DecodeError {
		t.Fatalf("expected DECODE_ERROR, got %v", err)
	}
}

func TestReadFileDecodeErrorsPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 'h', 'i'}, 0644); err != nil {
		t.Fatalf("setup WriteFile: %v", err)
	}

	if _, err := ReadFile(path, "", Strict); err == nil {
		t.Fatalf("expected a decode error under strict policy")
	}
	content, err := ReadFile(path, "", Replace)
	if err != nil {
		t.Fatalf("ReadFile replace: %v", err)
	}
	if content == "" {
		t.Fatalf("expected replaced content, got empty string")
	}
}
