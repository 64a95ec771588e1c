package dataset

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// Source is a dataset that can be replayed from its first record.
type Source interface {
	Rewind() (*Reader, error)
}

// File is a dataset file opened for training.
type File struct {
	f    *os.File
	size int64
}

func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat dataset: %w", err)
	}
	return &File{f: f, size: st.Size()}, nil
}

// Size is the file length in bytes.
func (d *File) Size() int64 { return d.size }

func (d *File) Rewind() (*Reader, error) {
	if _, err := d.f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind dataset: %w", err)
	}
	return NewReader(bufio.NewReaderSize(d.f, 1<<20)), nil
}

func (d *File) Close() error { return d.f.Close() }

// Bytes is an in-memory dataset.
type Bytes []byte

func (b Bytes) Rewind() (*Reader, error) {
	return NewReader(bytes.NewReader(b)), nil
}

// RecordWriter is the sink side used by ingestion.
type RecordWriter interface {
	Write(rec Record) error
}

// Writer appends records to a dataset file. Records go to a temporary file
// next to the destination, which only appears under its final name after a
// successful Commit.
type Writer struct {
	path  string
	tmp   string
	f     *os.File
	bw    *bufio.Writer
	count int
	bytes int64
	done  bool
}

func Create(path string) (*Writer, error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create dataset: %w", err)
	}
	return &Writer{path: path, tmp: tmp, f: f, bw: bufio.NewWriterSize(f, 1<<20)}, nil
}

func (w *Writer) Write(rec Record) error {
	if err := AppendRecord(w.bw, rec); err != nil {
		return fmt.Errorf("write record %d: %w", w.count, err)
	}
	w.count++
	w.bytes += int64(EncodedSize(rec))
	return nil
}

// Count is the number of records written.
func (w *Writer) Count() int { return w.count }

// Bytes is the number of bytes written.
func (w *Writer) Bytes() int64 { return w.bytes }

// Commit flushes the records and moves the file into place.
func (w *Writer) Commit() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.bw.Flush(); err != nil {
		w.discard()
		return fmt.Errorf("flush dataset: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.discard()
		return fmt.Errorf("sync dataset: %w", err)
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.tmp)
		return fmt.Errorf("close dataset: %w", err)
	}
	if err := os.Rename(w.tmp, w.path); err != nil {
		os.Remove(w.tmp)
		return fmt.Errorf("rename dataset: %w", err)
	}
	return nil
}

// Abort drops everything written so far. It is a no-op after Commit.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.discard()
}

func (w *Writer) discard() {
	w.f.Close()
	os.Remove(w.tmp)
}
