package gamedata

import (
	"fmt"

	"github.com/MrWong99/kirbyam/data"
)

// Default loads the dataset embedded in the binary.
func Default() (*Data, error) {
	d, err := LoadFS(data.FS)
	if err != nil {
		return nil, fmt.Errorf("gamedata: load embedded data: %w", err)
	}
	return d, nil
}
