package dictation

import (
	"context"
	"io"

	"dictat/internal/domain"
	"dictat/internal/storage"
)

// AudioStream Partial 为 true 时按 206 返回 [Start, End]
type AudioStream struct {
	Body     io.ReadCloser
	MimeType string
	FileName string
	Size     int64
	Start    int64
	End      int64
	Partial  bool
}

func (a *AudioStream) Length() int64 { return a.End - a.Start + 1 }

// RangeError 416 时需要带上文件总大小（Content-Range: bytes */size）
type RangeError struct {
	Size int64
	Err  error
}

func (e *RangeError) Error() string { return e.Err.Error() }
func (e *RangeError) Unwrap() error { return e.Err }

// Audio rangeHeader 为空时返回整个文件
func (s *Service) Audio(ctx context.Context, actor domain.Actor, id, rangeHeader string) (*AudioStream, error) {
	d, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	info, err := s.storage.Info(d.FilePath)
	if err != nil {
		return nil, err
	}
	out := &AudioStream{
		MimeType: d.MimeType,
		FileName: d.FileName,
		Size:     info.Size,
		End:      info.Size - 1,
	}
	if rangeHeader != "" {
		if out.Start, out.End, err = storage.ParseRange(rangeHeader, info.Size); err != nil {
			return nil, &RangeError{Size: info.Size, Err: err}
		}
		out.Partial = true
	}
	if out.Body, err = s.storage.Stream(d.FilePath, out.Start, out.End); err != nil {
		return nil, err
	}
	meta := map[string]any{"bytes": out.Length()}
	if out.Partial {
		meta["range"] = rangeHeader
	}
	s.record(ctx, actor, domain.AuditDictationAudioStreamed, d, meta)
	return out, nil
}
