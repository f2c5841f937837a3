package clf

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/ledgerwatch/turbo-clf/log"
)

// DefaultWorkers bounds how many merges CLFMaster will run concurrently in
// the background.
const DefaultWorkers = 4

// CLFMaster owns the single temporary directory used by every bucket this
// process spills, and the bounded worker pool background merges run on.
// It is a single, process-wide resource: acquired once at startup,
// released once at shutdown.
type CLFMaster struct {
	tmpDir string
	sem    chan struct{}
}

// NewCLFMaster creates the master's temp directory and worker pool.
// maxWorkers <= 0 falls back to DefaultWorkers.
func NewCLFMaster(maxWorkers int) (*CLFMaster, error) {
	if maxWorkers <= 0 {
		maxWorkers = DefaultWorkers
	}
	dir, err := os.MkdirTemp("", "turbo-clf-")
	if err != nil {
		return nil, wrapIoError("create clf temp dir", err)
	}
	log.Info("CLF master started", "tmpDir", dir, "workers", maxWorkers)
	return &CLFMaster{tmpDir: dir, sem: make(chan struct{}, maxWorkers)}, nil
}

// TmpDir returns the directory handed out to buckets that need to spill.
func (m *CLFMaster) TmpDir() string { return m.tmpDir }

// Close removes the temp directory. Any bucket file still referenced by a
// live Bucket disappears with it; by this point the BucketList must have
// dropped its last reference. The OS's own temp-directory reclamation is
// the final backstop if the process is killed before Close runs.
func (m *CLFMaster) Close() error {
	log.Info("CLF master shutting down", "tmpDir", m.tmpDir)
	return os.RemoveAll(m.tmpDir)
}

// SubmitMerge dispatches fn onto the bounded worker pool and blocks until
// it completes or ctx is cancelled. Using one errgroup.Group per call
// keeps the dependency edge (this merge's output is needed before the
// caller proceeds) explicit instead of threading a shared WaitGroup
// through the BucketList.
func (m *CLFMaster) SubmitMerge(ctx context.Context, fn func() (*Bucket, error)) (*Bucket, error) {
	g, gctx := errgroup.WithContext(ctx)
	var result *Bucket
	g.Go(func() error {
		select {
		case m.sem <- struct{}{}:
		case <-gctx.Done():
			return &Error{Kind: ShutdownRequested, Msg: "merge cancelled before start", Err: gctx.Err()}
		}
		defer func() { <-m.sem }()

		b, err := fn()
		if err != nil {
			return err
		}
		result = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
