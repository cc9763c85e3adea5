package wal

import (
	"io"

	"github.com/protobase/protobase/pkg/blockprovider"
	perrors "github.com/protobase/protobase/pkg/errors"
)

// Reader replays every frame durable in a block provider's WAL files, in
// wal_id order, for crash recovery.
type Reader struct {
	provider blockprovider.BlockProvider
}

func NewReader(provider blockprovider.BlockProvider) *Reader {
	return &Reader{provider: provider}
}

// ReadAll decodes every complete frame across all WAL files. A final
// frame that ends mid-record (the torn tail left by a crash between
// Append and the next Sync) is silently dropped rather than treated as
// an error; a checksum or tag failure anywhere else is corruption and is
// returned as an error, since it cannot be explained by a clean torn
// write.
func (r *Reader) ReadAll() ([]Frame, error) {
	ids, err := r.provider.ListWALs()
	if err != nil {
		return nil, err
	}

	var frames []Frame
	for i, id := range ids {
		isLast := i == len(ids)-1
		src, err := r.provider.GetReader(id, 0)
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return nil, perrors.Wrap(err, "read wal file")
		}

		off := 0
		for off < len(data) {
			frame, consumed, err := Decode(data[off:])
			if err != nil {
				if isShortRead(err) && isLast {
					// Torn tail: the writer appended a frame it never
					// finished (or never synced) before crashing.
					break
				}
				return nil, err
			}
			frames = append(frames, frame)
			off += consumed
		}
	}
	return frames, nil
}

func isShortRead(err error) bool {
	var sr *perrors.ShortRead
	return perrors.As(err, &sr)
}
