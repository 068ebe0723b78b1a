package main

import (
	"github.com/gizmo-platform/copter/internal/cmdlets"
)

func main() {
	cmdlets.Entrypoint()
}
