// Command ecofinds はEcoFindsのAPIサーバー、ワーカー、マイグレーション、
// ローカルカート操作を1つのバイナリで提供する。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/ecofinds/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ecofinds: %v\n", err)
		os.Exit(1)
	}
}
