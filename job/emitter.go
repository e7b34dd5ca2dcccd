package job

import (
	"context"

	"pixpack/models"
)

// Emitter carries pipeline messages to the host. A returned error fails the job.
type Emitter interface {
	Emit(msg models.Message) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(msg models.Message) error

func (f EmitterFunc) Emit(msg models.Message) error { return f(msg) }

// ChannelEmitter delivers messages on a channel. Sends block until received or ctx ends.
type ChannelEmitter struct {
	ctx context.Context
	ch  chan<- models.Message
}

func NewChannelEmitter(ctx context.Context, ch chan<- models.Message) *ChannelEmitter {
	return &ChannelEmitter{ctx: ctx, ch: ch}
}

func (c *ChannelEmitter) Emit(msg models.Message) error {
	select {
	case c.ch <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// guardedEmitter drops everything once the run is cancelled.
type guardedEmitter struct {
	ctx   context.Context
	jobID string
	next  Emitter
}

func (g *guardedEmitter) Emit(msg models.Message) error {
	if err := g.ctx.Err(); err != nil {
		return err
	}
	msg.JobID = g.jobID
	return g.next.Emit(msg)
}

func (g *guardedEmitter) overall(processed, total int) error {
	return g.Emit(models.Message{
		Kind:    models.KindOverallProgress,
		Overall: &models.OverallProgress{Processed: processed, Total: total},
	})
}

func (g *guardedEmitter) entry(o models.EntryOutcome) error {
	return g.Emit(models.Message{Kind: models.KindEntryProgress, Entry: &o})
}

func (g *guardedEmitter) chunk(data []byte) error {
	return g.Emit(models.Message{Kind: models.KindArchiveChunk, Chunk: data})
}
