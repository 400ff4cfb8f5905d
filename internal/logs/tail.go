package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	maxLineBytes = 1024 * 1024
	pollInterval = 250 * time.Millisecond
)

// TailOptions controls a single Tail call. A negative Offset returns the
// last Limit lines; otherwise reading resumes at Offset. With Follow set the
// call waits up to Wait for new lines.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	Filter Filter
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads the log at path. Filtered-out lines still advance the offset.
// A line still being written (no trailing newline) is left for the next call.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return TailResult{}, err
	}
	defer file.Close()

	var result TailResult
	if opts.Offset < 0 {
		result, err = lastLines(file, opts.Limit, opts.Filter)
	} else {
		result, err = linesFrom(file, opts.Offset)
		result.Lines = opts.Filter.Apply(result.Lines)
	}
	if err != nil || !opts.Follow || opts.Wait <= 0 || len(result.Lines) > 0 {
		return result, err
	}
	return follow(ctx, file, result.Offset, opts.Wait, opts.Filter)
}

// openLog returns nil without error when the file does not exist yet.
func openLog(path string) (*os.File, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

// lastLines keeps the last limit lines that pass filter, so a narrow filter
// still fills the window.
func lastLines(file *os.File, limit int, filter Filter) (TailResult, error) {
	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return TailResult{Offset: end}, nil
	}

	var window []string
	offset, err := scanLines(file, 0, func(line string) {
		if !filter.Match(line) {
			return
		}
		window = append(window, line)
		if len(window) >= 2*limit {
			window = append(window[:0], window[len(window)-limit:]...)
		}
	})
	if err != nil {
		return TailResult{}, err
	}
	if len(window) > limit {
		window = window[len(window)-limit:]
	}
	return TailResult{Lines: window, Offset: offset}, nil
}

// linesFrom reads every complete line after offset. An offset past the end
// of a truncated or rotated file restarts at the end.
func linesFrom(file *os.File, offset int64) (TailResult, error) {
	info, err := file.Stat()
	if err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("stat log file: %w", err)
	}
	if offset > info.Size() {
		offset = info.Size()
	}
	var lines []string
	next, err := scanLines(file, offset, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		return TailResult{Offset: offset}, err
	}
	return TailResult{Lines: lines, Offset: next}, nil
}

// scanLines calls fn for each newline-terminated line starting at offset and
// returns the offset just past the last complete line.
func scanLines(file *os.File, offset int64, fn func(string)) (int64, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return offset, nil
			}
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		line = strings.TrimRight(line, "\r\n")
		if len(line) > maxLineBytes {
			line = line[:maxLineBytes]
		}
		fn(line)
	}
}

func follow(ctx context.Context, file *os.File, offset int64, wait time.Duration, filter Filter) (TailResult, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-deadline.C:
			return TailResult{Offset: offset}, nil
		case <-ticker.C:
		}
		result, err := linesFrom(file, offset)
		if err != nil {
			return result, err
		}
		offset = result.Offset
		if lines := filter.Apply(result.Lines); len(lines) > 0 {
			return TailResult{Lines: lines, Offset: offset}, nil
		}
	}
}
