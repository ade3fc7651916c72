// Package main provides mbox-seed, a tool to seed test mailboxes.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const chunkSize = 1000

func main() {
	counts := []int{1000, 100000}
	baseDir := filepath.Join(os.TempDir(), "mbox-bench")

	for _, count := range counts {
		path := filepath.Join(baseDir, strconv.Itoa(count), "Inbox")
		start := time.Now()

		err := seedMailbox(path, count)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error seeding %d: %v\n", count, err)
			os.Exit(1)
		}

		fmt.Printf("Created %d messages in %s -> %s\n", count, time.Since(start), path)
	}
}

func seedMailbox(path string, count int) error {
	_ = os.RemoveAll(filepath.Dir(path))

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	// Chunks render in parallel and are written in order.
	numChunks := (count + chunkSize - 1) / chunkSize
	chunks := make([][]byte, numChunks)

	var grp errgroup.Group

	grp.SetLimit(runtime.NumCPU())

	for c := range numChunks {
		grp.Go(func() error {
			chunks[c] = renderChunk(c*chunkSize+1, min(count, (c+1)*chunkSize))

			return nil
		})
	}

	_ = grp.Wait()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating mailbox: %w", err)
	}

	w := bufio.NewWriter(file)
	for _, chunk := range chunks {
		_, _ = w.Write(chunk)
	}

	err = w.Flush()
	if err == nil {
		err = file.Sync()
	}

	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("writing mailbox: %w", err)
	}

	return nil
}

// renderChunk renders messages first..last. Every fourth message replies to
// the one before it.
func renderChunk(first, last int) []byte {
	var (
		buf    []byte
		prevID string
	)

	base := time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC)

	for i := first; i <= last; i++ {
		id := messageID()
		date := base.Add(time.Duration(i) * time.Minute)

		// Vary flags for realistic distribution: read 0x1, replied 0x2,
		// flagged 0x4, deleted 0x8.
		var status uint32

		if i%3 != 0 {
			status |= 0x1
		}

		if i%11 == 0 {
			status |= 0x2
		}

		if i%13 == 0 {
			status |= 0x4
		}

		if i%17 == 0 {
			status |= 0x8
		}

		subject := fmt.Sprintf("Test message %d", i)
		refs := ""

		if i%4 == 0 && prevID != "" {
			subject = "Re: " + fmt.Sprintf("Test message %d", i-1)
			refs = "In-Reply-To: <" + prevID + ">\nReferences: <" + prevID + ">\n"
		}

		buf = fmt.Appendf(buf, `From sender%d@example.org %s
From: Sender %d <sender%d@example.org>
To: Test User <user@example.org>
Subject: %s
Date: %s
Message-ID: <%s>
%sX-Mozilla-Status: %04x
X-Mozilla-Status2: 00000000

Body of message %d.
>From the archive.

`, i%50, date.Format(time.ANSIC), i%50, i%50, subject, date.Format(time.RFC1123Z), id, refs, status, i)

		prevID = id
	}

	return buf
}

func messageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return id.String() + "@seed.example.org"
}
