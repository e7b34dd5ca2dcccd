package job

import (
	"context"
	"errors"
	"fmt"

	"pixpack/archive"
	"pixpack/classify"
	"pixpack/encoder"
	"pixpack/logger"
	"pixpack/models"
	"pixpack/orientation"
)

// Options configures a run. The zero value uses the codec Registry and no entry size limit.
type Options struct {
	Codecs        encoder.Codecs
	MaxEntryBytes int64
}

// Reasons reported on skipped entries.
const (
	ReasonUnsupported  = "unsupported format"
	ReasonEntryTooBig  = "entry too large"
	ReasonNoCodec      = "no codec for format"
	ReasonOverBudget   = "best effort: exceeds maxBytes"
	ReasonFormatSwitch = "format conversion"
)

// Run processes one archive from scan to finalize. Messages go to emit in order and end
// with exactly one job-complete or job-failed, unless ctx is cancelled, in which case the
// run stops without a terminal message and returns ctx.Err().
func Run(ctx context.Context, inv models.JobInvocation, emit Emitter, opts Options) (*Job, error) {
	p := &pipeline{
		codecs:        opts.Codecs,
		maxEntryBytes: opts.MaxEntryBytes,
	}
	if p.codecs == nil {
		p.codecs = encoder.Registry
	}
	p.budget = encoder.NewBudgetEncoder(p.codecs)
	p.job = &Job{ID: inv.JobID, Rules: inv.Rules.WithDefaults(), State: StateIdle}
	p.emit = &guardedEmitter{ctx: ctx, jobID: inv.JobID, next: emit}

	err := p.run(ctx, inv.ArchiveData)
	return p.job, err
}

type pipeline struct {
	job           *Job
	emit          *guardedEmitter
	codecs        encoder.Codecs
	budget        *encoder.BudgetEncoder
	maxEntryBytes int64
}

func (p *pipeline) run(ctx context.Context, data []byte) error {
	j := p.job
	if err := j.Rules.Validate(); err != nil {
		return p.fail(ctx, fmt.Errorf("%w: %v", ErrInvalidRules, err))
	}

	j.State = StateScanning
	reader, err := archive.Open(data)
	if err != nil {
		return p.fail(ctx, err)
	}
	candidates := p.scan(reader)
	j.TotalCandidates = len(candidates)
	if j.TotalCandidates > j.Rules.MaxCount {
		return p.fail(ctx, fmt.Errorf("%w: %d > %d", ErrTooManyCandidates, j.TotalCandidates, j.Rules.MaxCount))
	}
	logger.Infof("job %s: %d candidates", j.ID, j.TotalCandidates)

	j.State = StateProcessing
	writer := archive.NewStreamWriter(p.emit.chunk)
	if err := p.emit.overall(0, j.TotalCandidates); err != nil {
		return p.fail(ctx, err)
	}

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return p.abort(err)
		}
		outcome, err := p.processEntry(ctx, reader, &candidates[i], writer)
		if err != nil {
			return p.fail(ctx, err)
		}
		j.record(outcome)
		if err := p.emit.entry(outcome); err != nil {
			return p.fail(ctx, err)
		}
		if err := p.emit.overall(j.ProcessedCount, j.TotalCandidates); err != nil {
			return p.fail(ctx, err)
		}
	}

	j.State = StateFinalizing
	if err := writer.Finalize(); err != nil {
		return p.fail(ctx, err)
	}
	j.ArchiveBytes = writer.BytesWritten()

	if err := p.emit.Emit(models.Message{Kind: models.KindJobComplete}); err != nil {
		return p.fail(ctx, err)
	}
	j.State = StateDone
	s := j.Stats
	logger.Infof("job %s done: %d kept, %d processed, %d skipped, %d errored, %d bytes saved",
		j.ID, s.Kept, s.Processed, s.Skipped, s.Errored, s.BytesSaved())
	return nil
}

// fail moves the job to Failed and reports it, unless the run was cancelled.
func (p *pipeline) fail(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return p.abort(ctxErr)
	}
	p.job.State = StateFailed
	p.job.Err = err
	logger.Errorf("job %s failed: %v", p.job.ID, err)
	if emitErr := p.emit.Emit(models.Message{Kind: models.KindJobFailed, Reason: err.Error()}); emitErr != nil {
		logger.Warnf("job %s: failed to report failure: %v", p.job.ID, emitErr)
	}
	return err
}

// abort stops without a terminal message.
func (p *pipeline) abort(err error) error {
	p.job.State = StateFailed
	p.job.Err = err
	logger.Warnf("job %s cancelled after %d/%d entries", p.job.ID, p.job.ProcessedCount, p.job.TotalCandidates)
	return err
}

// scan returns the entries that classify as a supported image. Bytes are read to sniff
// the format and dropped again. Entries that cannot be read stay in the list so their
// skip or error shows up as an outcome.
func (p *pipeline) scan(r *archive.Reader) []models.Entry {
	var candidates []models.Entry
	for _, e := range r.Entries() {
		if !classify.IsCandidate(e.RawName) {
			continue
		}
		if err := r.ReadEntry(&e, p.maxEntryBytes); err != nil {
			candidates = append(candidates, e)
			continue
		}
		e.DetectedFormat = classify.Classify(e.RawName, e.Data)
		e.Data = nil
		if e.DetectedFormat == models.FormatNone {
			logger.Debugf("job %s: ignoring %s, not a supported image", p.job.ID, e.RawName)
			continue
		}
		candidates = append(candidates, e)
	}
	return candidates
}

// processEntry turns one candidate into an outcome. Only writer, sink and context errors
// are returned; everything else is recorded on the outcome.
func (p *pipeline) processEntry(ctx context.Context, r *archive.Reader, e *models.Entry, w *archive.StreamWriter) (models.EntryOutcome, error) {
	rules := p.job.Rules
	e.SanitizedName = classify.SanitizeName(e.RawName)
	out := models.EntryOutcome{Name: e.SanitizedName}

	if err := r.ReadEntry(e, p.maxEntryBytes); err != nil {
		if errors.Is(err, archive.ErrEntryTooLarge) {
			return skipped(out, ReasonEntryTooBig), nil
		}
		return errored(out, err), nil
	}
	defer func() { e.Data = nil }()
	out.OriginalSize = int64(len(e.Data))

	e.DetectedFormat = classify.Classify(e.RawName, e.Data)
	if e.DetectedFormat == models.FormatNone {
		return skipped(out, ReasonUnsupported), nil
	}
	out.InFormat = e.DetectedFormat

	codec, ok := p.codecs.Get(e.DetectedFormat)
	if !ok {
		return skipped(out, ReasonNoCodec), nil
	}
	img, err := codec.Decode(ctx, e.Data)
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		return errored(out, fmt.Errorf("decode failed: %w", err)), nil
	}

	b := img.Bounds()
	decoded := models.DecodedImage{
		Image:       img,
		Width:       b.Dx(),
		Height:      b.Dy(),
		Orientation: orientation.Resolve(e.DetectedFormat, e.Data),
	}
	width, height := decoded.Width, decoded.Height
	if orientation.SwapsDimensions(decoded.Orientation) {
		width, height = height, width
	}

	target := encoder.TargetFormat(e.DetectedFormat, rules)
	if !encoder.NeedsProcessing(width, height, out.OriginalSize, rules) && target == e.DetectedFormat {
		name, err := w.AddEntry(classify.OutputName(e.SanitizedName, e.DetectedFormat), e.Data)
		if err != nil {
			return out, err
		}
		out.Name = name
		out.Status = models.StatusKept
		out.OutFormat = e.DetectedFormat
		out.Size = out.OriginalSize
		out.Width, out.Height = width, height
		logger.Debugf("job %s: kept %s (%d bytes)", p.job.ID, name, out.Size)
		return out, nil
	}

	upright := orientation.Apply(decoded.Image, decoded.Orientation)
	decoded.Image = nil
	res, err := p.budget.Encode(ctx, upright, target, rules)
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		return errored(out, fmt.Errorf("encode failed: %w", err)), nil
	}

	name, err := w.AddEntry(classify.OutputName(e.SanitizedName, target), res.Data)
	if err != nil {
		return out, err
	}
	out.Name = name
	out.Status = models.StatusProcessed
	out.OutFormat = target
	out.Size = int64(len(res.Data))
	out.Width, out.Height = res.Width, res.Height
	if !res.FitsBudget {
		out.Reason = ReasonOverBudget
	} else if target != e.DetectedFormat && !encoder.NeedsProcessing(width, height, out.OriginalSize, rules) {
		out.Reason = ReasonFormatSwitch
	}
	logger.Debugf("job %s: processed %s %dx%d q=%.3f %d -> %d bytes (%d encodes, %d sizes)",
		p.job.ID, name, res.Width, res.Height, res.Quality, out.OriginalSize, out.Size, res.Iterations, res.SizeLevels)
	return out, nil
}

func skipped(o models.EntryOutcome, reason string) models.EntryOutcome {
	o.Status = models.StatusSkipped
	o.Reason = reason
	logger.Debugf("skipped %s: %s", o.Name, reason)
	return o
}

func errored(o models.EntryOutcome, err error) models.EntryOutcome {
	o.Status = models.StatusErrored
	o.Reason = err.Error()
	logger.Warnf("entry %s errored: %v", o.Name, err)
	return o
}
