package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.lorenzomilicia.dev/aurora-converter/internal/walker"
)

// Action is what happened to one file of an uploaded tree.
type Action string

const (
	ActionUploaded Action = "uploaded"
	ActionSkipped  Action = "skipped"
	ActionDryRun   Action = "dry-run"
	ActionFailed   Action = "failed"
)

// Event reports one file of an uploaded tree.
type Event struct {
	Key         string
	Action      Action
	ContentType string
	Err         error
}

// TreeResult counts the outcomes of UploadTree.
type TreeResult struct {
	Uploaded int
	Skipped  int
	Errors   int
}

// ObjectKey joins prefix and a slash-separated relative path.
func ObjectKey(prefix, rel string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// UploadTree uploads every file under dir, keyed by its path relative to dir.
// Files already present remotely are skipped unless opts.Force is set. ul may be
// nil for a dry run. Per-file failures are counted and reported through onEvent;
// only cancellation stops the walk early.
func UploadTree(ctx context.Context, ul Uploader, dir string, opts UploadOptions, onEvent func(Event)) (TreeResult, error) {
	var res TreeResult
	if ul == nil && !opts.DryRun {
		return res, errors.New("upload tree: no uploader configured")
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return res, fmt.Errorf("upload tree: %s is not a directory", dir)
	}
	emit := func(ev Event) {
		switch ev.Action {
		case ActionUploaded, ActionDryRun:
			res.Uploaded++
		case ActionSkipped:
			res.Skipped++
		case ActionFailed:
			res.Errors++
		}
		if onEvent != nil {
			onEvent(ev)
		}
	}

	for r := range walker.Walk(dir) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if r.Skipped {
			switch {
			case r.Reason == walker.ReasonSentinel:
			case r.Err == nil:
				emit(Event{Key: r.Path, Action: ActionSkipped})
			default:
				emit(Event{Key: r.Path, Action: ActionFailed, Err: fmt.Errorf("%s: %w", r.Reason, r.Err)})
			}
			continue
		}
		emit(uploadOne(ctx, ul, r.Entry, opts))
	}
	return res, nil
}

func uploadOne(ctx context.Context, ul Uploader, e walker.Entry, opts UploadOptions) Event {
	ev := Event{Key: ObjectKey(opts.Prefix, filepath.ToSlash(e.RelPath())), ContentType: opts.ContentType}
	if ev.ContentType == "" {
		ev.ContentType = DetectContentType(e.Name)
	}
	if opts.DryRun {
		ev.Action = ActionDryRun
		return ev
	}

	if !opts.Force {
		exists, err := ul.Exists(ctx, ev.Key)
		if err != nil {
			ev.Action, ev.Err = ActionFailed, err
			return ev
		}
		if exists {
			ev.Action = ActionSkipped
			return ev
		}
	}

	f, err := os.Open(e.Path)
	if err != nil {
		ev.Action, ev.Err = ActionFailed, err
		return ev
	}
	defer f.Close()

	if err := ul.Upload(ctx, ev.Key, f, ev.ContentType); err != nil {
		ev.Action, ev.Err = ActionFailed, err
		return ev
	}
	ev.Action = ActionUploaded
	return ev
}
