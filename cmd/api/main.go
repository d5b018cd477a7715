// Command api serves the order HTTP and gRPC surfaces without the CLI.
package main

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/upfit/internal/app"
)

func main() {
	fx.New(app.HTTP).Run()
}
