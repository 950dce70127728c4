package store

import (
	"bufio"
	"fmt"
	"os"

	"github.com/AbelMP17/OnlyNadesV2/cluster"
	"github.com/klauspost/compress/zstd"
)

// saveCompressed writes records as a zstd stream at best compression.
func saveCompressed(filename, slug string, records []cluster.Record) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	bufWriter := bufio.NewWriterSize(file, 1024*1024)
	enc, err := zstd.NewWriter(bufWriter,
		zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	defer enc.Close()

	e := &encoder{w: enc}
	e.header(slug, len(records))
	for _, r := range records {
		e.record(r)
	}
	if e.err != nil {
		return fmt.Errorf("failed to write records: %w", e.err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to close encoder: %w", err)
	}
	if err := bufWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	return file.Sync()
}

func loadCompressed(filename string) (string, []cluster.Record, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	dec, err := zstd.NewReader(bufio.NewReader(file))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()

	d := &decoder{r: dec}
	slug, n := d.header()
	if d.err != nil {
		return "", nil, d.err
	}

	// Cap the preallocation; a lying header fails on read instead.
	records := make([]cluster.Record, 0, min(n, 1<<16))
	for i := uint32(0); i < n; i++ {
		r := d.record()
		if d.err != nil {
			return "", nil, fmt.Errorf("record %d: %w", i, d.err)
		}
		records = append(records, r)
	}
	return slug, records, nil
}
