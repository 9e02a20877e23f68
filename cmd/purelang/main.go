// Command purelang compiles and runs programs through dynamically loaded
// compile service and runtime modules.
package main

import (
	"os"

	"github.com/purelang/launcher/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:]))
}
