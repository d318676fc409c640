package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"dictat/internal/domain"
)

// sniffLen mimetype 默认也只看前 3KB
const sniffLen = 3072

// 各格式可接受的嗅探结果（含别名）
var formatMIMEs = map[string][]string{
	"mp3":  {"audio/mpeg", "audio/mp3"},
	"wav":  {"audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave"},
	"m4a":  {"audio/x-m4a", "audio/mp4", "audio/m4a"},
	"ogg":  {"audio/ogg", "application/ogg", "audio/opus"},
	"flac": {"audio/flac", "audio/x-flac"},
}

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

type Config struct {
	BasePath       string
	MaxUploadBytes int64
	AllowedFormats []string
	ChunkSize      int
}

type FileMeta struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Hash     string `json:"hash"`
}

type FileInfo struct {
	Size         int64
	MimeType     string
	LastModified time.Time
}

// Service 音频文件落盘与读取。Path 均为 BasePath 下的文件名
type Service struct {
	cfg     Config
	allowed map[string]string // mime → format
	now     func() time.Time
}

func New(cfg Config) (*Service, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1 << 20
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, errors.New("storage: max upload size must be positive")
	}
	allowed := map[string]string{}
	for _, f := range cfg.AllowedFormats {
		f = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
		mimes, ok := formatMIMEs[f]
		if !ok {
			return nil, fmt.Errorf("storage: unknown audio format %q", f)
		}
		for _, m := range mimes {
			allowed[m] = f
		}
	}
	if err := os.MkdirAll(cfg.BasePath, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create base path: %w", err)
	}
	return &Service{cfg: cfg, allowed: allowed, now: time.Now}, nil
}

// detect 沿 mimetype 的父类型链查找允许的格式
func (s *Service) detect(header []byte) (*mimetype.MIME, string, bool) {
	m := mimetype.Detect(header)
	for mm := m; mm != nil; mm = mm.Parent() {
		for mime, format := range s.allowed {
			if mm.Is(mime) {
				return m, format, true
			}
		}
	}
	return m, "", false
}

// Save 先嗅探文件头再落盘；超过大小上限或 ctx 取消时删除临时文件
func (s *Service) Save(ctx context.Context, r io.Reader, filename, ownerID string) (_ *FileMeta, err error) {
	header := make([]byte, sniffLen)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	header = header[:n]
	if n == 0 {
		return nil, domain.NewValidationError("file", "empty upload")
	}
	m, format, ok := s.detect(header)
	if !ok {
		return nil, fmt.Errorf("detected %s: %w", m.String(), domain.ErrUnsupportedMedia)
	}

	tmp, err := os.CreateTemp(s.cfg.BasePath, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	h := sha256.New()
	src := io.LimitReader(io.MultiReader(bytes.NewReader(header), ctxReader{ctx: ctx, r: r}), s.cfg.MaxUploadBytes+1)
	written, err := io.CopyBuffer(io.MultiWriter(tmp, h), src, make([]byte, s.cfg.ChunkSize))
	if err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if written > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("upload exceeds %d bytes: %w", s.cfg.MaxUploadBytes, domain.ErrPayloadTooLarge)
	}
	if err = tmp.Close(); err != nil {
		return nil, fmt.Errorf("close upload: %w", err)
	}

	name := s.generateName(filename, ownerID, format, m)
	if err = os.Rename(tmp.Name(), filepath.Join(s.cfg.BasePath, name)); err != nil {
		return nil, fmt.Errorf("finalize upload: %w", err)
	}
	return &FileMeta{
		Path:     name,
		Size:     written,
		MimeType: m.String(),
		Hash:     hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// generateName 时间戳_随机串_属主.扩展名，不使用客户端文件名本身
func (s *Service) generateName(filename, ownerID, format string, m *mimetype.MIME) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if !safeExt.MatchString(ext) {
		ext = m.Extension()
		if ext == "" {
			ext = "." + format
		}
	}
	rnd := make([]byte, 8)
	_, _ = rand.Read(rnd)
	owner := strings.Map(func(r rune) rune {
		if r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			return r
		}
		return -1
	}, ownerID)
	return fmt.Sprintf("%s_%s_%s%s", s.now().UTC().Format("20060102T150405"), hex.EncodeToString(rnd), owner, ext)
}

func (s *Service) resolve(path string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + path))
	if name == "/" || name == "." || strings.HasPrefix(name, ".upload-") {
		return "", fmt.Errorf("file %q: %w", path, domain.ErrNotFound)
	}
	return filepath.Join(s.cfg.BasePath, name), nil
}

func (s *Service) Info(path string) (*FileInfo, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, mapNotExist(path, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	head := make([]byte, sniffLen)
	n, _ := io.ReadFull(f, head)
	return &FileInfo{
		Size:         st.Size(),
		MimeType:     mimetype.Detect(head[:n]).String(),
		LastModified: st.ModTime(),
	}, nil
}

// Stream 返回 [start, end] 闭区间的惰性读取器；end < 0 表示读到文件末尾。调用方负责 Close
func (s *Service) Stream(path string, start, end int64) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, mapNotExist(path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	size := st.Size()
	if end < 0 {
		end = size - 1
	}
	if size == 0 && start == 0 && end == -1 {
		return f, nil
	}
	if start < 0 || end >= size || start > end {
		_ = f.Close()
		return nil, fmt.Errorf("bytes %d-%d of %d: %w", start, end, size, domain.ErrRangeNotSatisfiable)
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &rangeReader{
		Reader: io.LimitReader(f, end-start+1),
		Closer: f,
	}, nil
}

func (s *Service) Delete(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return mapNotExist(path, err)
	}
	return nil
}

func mapNotExist(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file %q: %w", path, domain.ErrNotFound)
	}
	return err
}

type rangeReader struct {
	io.Reader
	io.Closer
}

// ctxReader 每次读之前检查 ctx，客户端断开时尽快中止写盘
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
