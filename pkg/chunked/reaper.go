package chunked

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
	"github.com/materials-commons/mcupload/pkg/mcdb/stor"
	"github.com/materials-commons/mcupload/pkg/sink"
)

// Prompter asks for a yes/no confirmation.
type Prompter interface {
	Confirm(question string) (bool, error)
}

// LinePrompter reads answers a line at a time. Anything other than y or n
// (in either case) asks again.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

func (p *LinePrompter) Confirm(question string) (bool, error) {
	for {
		if _, err := fmt.Fprint(p.out, question); err != nil {
			return false, err
		}

		line, err := p.in.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		switch {
		case answer == "y":
			return true, nil
		case answer == "n":
			return false, nil
		case err != nil:
			return false, err
		}
	}
}

type SweepOptions struct {
	Now             time.Time
	ExpirationDelta time.Duration
	Interactive     bool
}

// SweepSummary lists what a sweep deleted. DeletedIDs is in deletion order.
// SinkErrors holds the references whose sink could not be removed, those
// uploads keep their record so the next sweep tries again.
type SweepSummary struct {
	DeletedIDs []string
	Counts     map[string]int
	SinkErrors map[string]error
}

// Lines renders the summary the way the reap command prints it.
func (s *SweepSummary) Lines() []string {
	lines := []string{fmt.Sprintf("Deleted upload ids: [%s].", strings.Join(s.DeletedIDs, ", "))}

	statuses := make([]string, 0, len(s.Counts))
	for status := range s.Counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	for _, status := range statuses {
		label := status
		if status == mcmodel.ChunkedUploadStatusUploading {
			label = "incomplete"
		}
		lines = append(lines, fmt.Sprintf("%d %s uploads were deleted.", s.Counts[status], label))
	}

	return lines
}

// Reaper deletes uploads that are older than the expiration delta, along
// with their sink objects. It doesn't coordinate with uploads in flight.
type Reaper struct {
	uploads  stor.ChunkedUploadStor
	sink     sink.Sink
	prompter Prompter
	hooks    Hooks
}

func NewReaper(uploads stor.ChunkedUploadStor, s sink.Sink, prompter Prompter) *Reaper {
	return &Reaper{uploads: uploads, sink: s, prompter: prompter, hooks: NoopHooks{}}
}

// WithHooks sets the hooks told about each deleted upload.
func (r *Reaper) WithHooks(hooks Hooks) *Reaper {
	r.hooks = hooksOrNoop(hooks)
	return r
}

// Sweep removes every upload created before opts.Now - opts.ExpirationDelta,
// oldest first and one at a time. In interactive mode each one is confirmed
// first and a "n" only skips that upload.
func (r *Reaper) Sweep(ctx context.Context, opts SweepOptions) (*SweepSummary, error) {
	summary := &SweepSummary{
		Counts: map[string]int{
			mcmodel.ChunkedUploadStatusComplete:  0,
			mcmodel.ChunkedUploadStatusUploading: 0,
		},
		SinkErrors: make(map[string]error),
	}

	if opts.Interactive && r.prompter == nil {
		return nil, fmt.Errorf("interactive sweep needs a prompter")
	}

	uploads, err := r.uploads.ListChunkedUploadsCreatedBefore(opts.Now.Add(-opts.ExpirationDelta))
	if err != nil {
		return nil, fmt.Errorf("listing expired uploads: %w", err)
	}

	for i := range uploads {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		upload := &uploads[i]
		if opts.Interactive {
			ok, err := r.prompter.Confirm(fmt.Sprintf("Do you want to delete %s? (y/n): ", upload))
			if err != nil {
				return summary, fmt.Errorf("reading confirmation: %w", err)
			}

			if !ok {
				continue
			}
		}

		if err := r.deleteUpload(ctx, upload, summary); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

// deleteUpload removes the sink object before the record. When the sink
// can't be removed the record is kept, so no sink object is ever left
// without a record pointing at it. Deleting a missing sink object succeeds,
// which lets a later sweep finish an upload whose record delete failed.
func (r *Reaper) deleteUpload(ctx context.Context, upload *mcmodel.ChunkedUpload, summary *SweepSummary) error {
	if err := r.sink.Delete(ctx, upload.StorageRef); err != nil {
		log.WithFields(log.Fields{"upload_id": upload.UploadID, "ref": upload.StorageRef}).Errorf("Unable to delete sink, keeping upload: %s", err)
		summary.SinkErrors[upload.StorageRef] = err
		return nil
	}

	if err := r.uploads.DeleteChunkedUpload(upload); err != nil {
		return fmt.Errorf("deleting upload %s: %w", upload.UploadID, err)
	}

	summary.DeletedIDs = append(summary.DeletedIDs, upload.UploadID)
	summary.Counts[upload.Status]++
	r.hooks.OnDeleted(ctx, upload)

	return nil
}

// StartPeriodicSweep runs a non-interactive Sweep every interval until the
// returned stop func is called. A zero interval starts nothing.
func (r *Reaper) StartPeriodicSweep(expirationDelta, every time.Duration) func() {
	if every <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(every)
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-ticker.C:
				summary, err := r.Sweep(context.Background(), SweepOptions{Now: time.Now(), ExpirationDelta: expirationDelta})
				if err != nil {
					log.Errorf("Periodic sweep failed: %s", err)
				}

				if summary != nil && len(summary.DeletedIDs) != 0 {
					log.Infof("Periodic sweep removed %d expired uploads", len(summary.DeletedIDs))
				}
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		once.Do(func() {
			close(stop)
		})
	}
}
