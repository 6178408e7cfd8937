package app

import (
	"fmt"

	"github.com/kqclabs/kqc/internal/version"
)

// runVersion prints the build identification line.
func (a *App) runVersion() error {
	_, err := fmt.Fprintln(a.outW, version.Current().String())
	return err
}
