package pump

import (
	"context"

	"golang.org/x/sync/errgroup"

	"emupace/internal/protocol"
)

// Governor answers requests with decisions, see governor.Governor
type Governor interface {
	Run(ctx context.Context, requests <-chan protocol.Message, decisions chan<- protocol.Message) error
}

// Play connects pump and governor with capacity-1 channels, starts the loop and blocks
// until either side stops. When the pump stops the governor is stopped too; when the
// governor fails the pump is cancelled and the governor error is returned.
func Play(ctx context.Context, g Governor, p *Pump) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	requests := make(chan protocol.Message, 1)
	decisions := make(chan protocol.Message, 1)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return g.Run(egCtx, requests, decisions)
	})

	eg.Go(func() error {
		defer cancel()
		return p.Run(egCtx, requests, decisions)
	})

	p.Start()

	return eg.Wait()
}
