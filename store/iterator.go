package store

import "context"

// BufferSize is the number of entities an Iterator prefetches per Next
// RPC when driven one entity at a time (§4.5).
const BufferSize = 20

// ErrIteratorDone is returned by Next and NextBatch once a query's results
// are exhausted.
var ErrIteratorDone = newErr(KindInternal, "no more results")

// iterMode tracks which access pattern an Iterator has committed to: the
// two are mutually exclusive because they disagree about how much of the
// prefetch buffer the caller has already consumed.
type iterMode int

const (
	modeUnset iterMode = iota
	modeOneAtATime
	modeBatch
)

// Iterator walks the results of a Query, fetching from the store in pages
// bounded by BufferSize and handing them out through either Next (one at a
// time) or NextBatch (in caller-chosen chunks). A single Iterator must use
// exactly one of those two methods for its whole lifetime.
type Iterator struct {
	d        Dispatch
	codec    PropertyCodec
	buf      []WireEntity
	bufPos   int
	cursor   string
	done     bool
	mode     iterMode
	started  bool
}

func newIterator(ctx context.Context, d Dispatch, codec PropertyCodec, q *Query, cursor string) (*Iterator, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	req, err := q.toWire(codec, "")
	if err != nil {
		return nil, err
	}
	req.StartCursor = cursor
	if req.Limit == 0 || req.Limit > BufferSize {
		req.Limit = BufferSize
	}
	resp, err := d.RunQuery(ctx, req)
	if err != nil {
		return nil, classifyWireError(err)
	}
	return &Iterator{
		d: d, codec: codec,
		buf:    resp.Entities,
		cursor: resp.EndCursor,
		done:   resp.MoreResults == NoMoreResults,
	}, nil
}

func (it *Iterator) setMode(m iterMode) error {
	if it.mode == modeUnset {
		it.mode = m
		it.started = true
		return nil
	}
	if it.mode != m {
		return newErr(KindBadArgument, "iterator already driven with the other access pattern; Next and NextBatch cannot be interleaved")
	}
	return nil
}

// Next returns the next entity, or ErrIteratorDone when results are
// exhausted. Next and NextBatch must not be called on the same Iterator.
func (it *Iterator) Next(ctx context.Context) (*Entity, error) {
	if err := it.setMode(modeOneAtATime); err != nil {
		return nil, err
	}
	we, err := it.advance(ctx)
	if err != nil {
		return nil, err
	}
	if we == nil {
		return nil, ErrIteratorDone
	}
	return EntityFromWire(*we, it.codec)
}

// NextBatch returns up to n entities in one call, or ErrIteratorDone (with
// a nil slice) once results are exhausted. It fetches further pages as
// needed to fill the batch, so a short, non-empty slice with a nil error
// means the results ran out; the following call returns ErrIteratorDone.
// Next and NextBatch must not be called on the same Iterator.
func (it *Iterator) NextBatch(ctx context.Context, n int) ([]*Entity, error) {
	if err := it.setMode(modeBatch); err != nil {
		return nil, err
	}
	out := make([]*Entity, 0, n)
	for len(out) < n {
		we, err := it.advance(ctx)
		if err != nil {
			return nil, err
		}
		if we == nil {
			break
		}
		e, err := EntityFromWire(*we, it.codec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, ErrIteratorDone
	}
	return out, nil
}

// advance returns the next buffered wire entity, fetching another page via
// Next when the buffer is exhausted. A nil, nil return means results are
// exhausted.
func (it *Iterator) advance(ctx context.Context) (*WireEntity, error) {
	if it.bufPos < len(it.buf) {
		we := &it.buf[it.bufPos]
		it.bufPos++
		return we, nil
	}
	if it.done {
		return nil, nil
	}
	resp, err := it.d.Next(ctx, NextRequest{Cursor: it.cursor, Count: BufferSize})
	if err != nil {
		return nil, classifyWireError(err)
	}
	it.buf = resp.Entities
	it.bufPos = 0
	it.cursor = resp.EndCursor
	it.done = resp.MoreResults == NoMoreResults
	if len(it.buf) == 0 {
		return nil, nil
	}
	we := &it.buf[it.bufPos]
	it.bufPos++
	return we, nil
}

// Cursor returns the cursor the store reported with the most recently
// fetched page. It marks the end of that page, not the position after the
// last entity Next or NextBatch returned: entities still in the prefetch
// buffer lie before it.
func (it *Iterator) Cursor() string { return it.cursor }
