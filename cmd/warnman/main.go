// Command warnman は警告記録のHTTP APIとDiscord Botを起動する。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/warnman/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "warnman: %v\n", err)
		os.Exit(1)
	}
}
