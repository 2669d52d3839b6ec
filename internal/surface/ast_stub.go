//go:build !cgo

package surface

import (
	"context"

	"archscan/internal/model"
)

type astSurface struct {
	imports    []model.Import
	exports    []string
	complexity int
}

func parseAST(context.Context, model.Language, []byte) (*astSurface, bool) {
	return nil, false
}
