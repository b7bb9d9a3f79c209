// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package runtime

import (
	"context"
	"io"
	"os"
	"sync"
)

// drain copies both pipes concurrently. Platforms without poll(2) use one
// goroutine per stream instead.
func drain(_ context.Context, stdout, stderr *os.File, capt *capture) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	copyStream := func(r io.Reader, w *lineWriter) {
		defer wg.Done()
		if _, err := io.Copy(w, r); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
		w.Flush()
	}
	wg.Add(2)
	go copyStream(stdout, capt.out)
	go copyStream(stderr, capt.err)
	wg.Wait()
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
