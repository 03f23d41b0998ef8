// Package archive reads and writes the shopkeeper save file: a
// zstd-compressed YAML document with a small JSON header line in front, so
// tooling can identify version and shop count without decoding the body.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"shopcraft.gg/internal/shop"
)

type Header struct {
	Version     int   `json:"version"`
	SavedAtUnix int64 `json:"saved_at_unix"`
	Count       int   `json:"count"`
}

type SaveFileV1 struct {
	Header      Header        `yaml:"header"`
	Shopkeepers []shop.Record `yaml:"shopkeepers"`
}

// Write replaces the save file atomically: the new content lands in a temp
// file first and is renamed over the old save only after a complete write.
func Write(path string, sf SaveFileV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if err := writeTo(f, sf); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeTo(f *os.File, sf SaveFileV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(sf.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	body, err := yaml.Marshal(&sf)
	if err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	if _, err := bw.Write(body); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func Read(path string) (SaveFileV1, error) {
	var sf SaveFileV1
	f, err := os.Open(path)
	if err != nil {
		return sf, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return sf, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// Header line is informational; the YAML body repeats it.
	if _, err := br.ReadBytes('\n'); err != nil {
		return sf, fmt.Errorf("read header: %w", err)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return sf, err
	}
	if err := yaml.Unmarshal(body, &sf); err != nil {
		return sf, fmt.Errorf("yaml decode: %w", err)
	}
	return sf, nil
}
