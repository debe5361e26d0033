package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/kirbyam/internal/gamedata"
)

// DataLoaded passes while current returns loaded game data.
func DataLoaded(current func() *gamedata.Data) Checker {
	return Checker{Name: "data", Check: func(context.Context) error {
		d := current()
		if d == nil {
			return errors.New("game data not loaded")
		}
		if len(d.Items) == 0 || len(d.Locations) == 0 {
			return fmt.Errorf("game data is empty (%d items, %d locations)", len(d.Items), len(d.Locations))
		}
		return nil
	}}
}

// Pinger is satisfied by [*ledger.PostgresStore].
type Pinger interface {
	Ping(ctx context.Context) error
}

// LedgerReachable passes while the ledger database answers.
func LedgerReachable(p Pinger) Checker {
	return Checker{Name: "ledger", Check: p.Ping}
}
