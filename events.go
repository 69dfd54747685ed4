package lockbridge

import (
	"context"

	"github.com/shimmeringbee/logwrap"
)

const eventBacklog = 100

func (b *Bridge) sendEvent(e any) {
	select {
	case b.events <- e:
	default:
		b.logger.LogWarn(b.ctx, "Event channel buffer full, dropping event.", logwrap.Datum("Event", e))
	}
}

func (b *Bridge) ReadEvent(ctx context.Context) (any, error) {
	select {
	case e := <-b.events:
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
