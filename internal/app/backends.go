package app

import (
	"github.com/kqclabs/kqc/internal/backend"
	"github.com/kqclabs/kqc/internal/backend/ansys"
	"github.com/kqclabs/kqc/internal/backend/elmer"
)

// coreBackends is the definitive list of export tools compiled into the
// kqc binary.
var coreBackends = []backend.Backend{
	elmer.New(),
	ansys.New(),
}
