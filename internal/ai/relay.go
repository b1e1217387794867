package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	defaultRelayChunkSize = 32 * 1024
	defaultRelayBuffer    = 16
)

type PipeOptions struct {
	// ChunkSize bounds a single upstream read.
	ChunkSize int
	// Buffer is the capacity of the chunk channel between reader and writer.
	Buffer int
	// IdleTimeout aborts the relay when no chunk arrives for this long.
	// Zero disables it.
	IdleTimeout time.Duration
	// Flush is called after every written chunk.
	Flush func() error
	// Observer receives a copy of every chunk after it was written to dst.
	Observer io.Writer
}

type PipeStats struct {
	Bytes  int64
	Chunks int
}

// Pipe relays src to dst unchanged. A reader goroutine pushes chunks
// into a bounded channel and the calling goroutine drains it into dst.
// When ctx is cancelled, dst fails, or the idle timeout fires, src is
// closed and the reader is awaited before Pipe returns. A clean upstream
// EOF returns a nil error.
func Pipe(ctx context.Context, src io.ReadCloser, dst io.Writer, options PipeOptions) (PipeStats, error) {
	if options.ChunkSize <= 0 {
		options.ChunkSize = defaultRelayChunkSize
	}
	if options.Buffer <= 0 {
		options.Buffer = defaultRelayBuffer
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan []byte, options.Buffer)
	readErr := make(chan error, 1)
	go readChunks(ctx, src, options.ChunkSize, chunks, readErr)

	var idle <-chan time.Time
	var idleTimer *time.Timer
	if options.IdleTimeout > 0 {
		idleTimer = time.NewTimer(options.IdleTimeout)
		defer idleTimer.Stop()
		idle = idleTimer.C
	}

	var (
		stats    PipeStats
		relayErr error
	)
relay:
	for {
		select {
		case <-ctx.Done():
			relayErr = ctx.Err()
			break relay
		case <-idle:
			relayErr = ErrStreamIdle
			break relay
		case chunk, ok := <-chunks:
			if !ok {
				break relay
			}
			if err := writeChunk(dst, chunk, options); err != nil {
				relayErr = err
				break relay
			}
			stats.Bytes += int64(len(chunk))
			stats.Chunks++
			if idleTimer != nil {
				if !idleTimer.Stop() {
					select {
					case <-idleTimer.C:
					default:
					}
				}
				idleTimer.Reset(options.IdleTimeout)
			}
		}
	}

	cancel()
	_ = src.Close()
	for range chunks {
	}
	upstreamErr := <-readErr

	if relayErr != nil {
		return stats, relayErr
	}
	if upstreamErr != nil {
		return stats, fmt.Errorf("%w: read stream: %w", ErrUpstream, upstreamErr)
	}
	return stats, nil
}

func readChunks(ctx context.Context, src io.Reader, size int, chunks chan<- []byte, readErr chan<- error) {
	defer close(chunks)

	buffer := make([]byte, size)
	for {
		n, err := src.Read(buffer)
		if n > 0 {
			chunk := append([]byte(nil), buffer[:n]...)
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				readErr <- ctx.Err()
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			readErr <- err
			return
		}
	}
}

func writeChunk(dst io.Writer, chunk []byte, options PipeOptions) error {
	if _, err := dst.Write(chunk); err != nil {
		return fmt.Errorf("write stream: %w", err)
	}
	if options.Flush != nil {
		if err := options.Flush(); err != nil {
			return fmt.Errorf("flush stream: %w", err)
		}
	}
	if options.Observer != nil {
		_, _ = options.Observer.Write(chunk)
	}
	return nil
}
