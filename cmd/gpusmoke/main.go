package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

func main() {
	app, st := newApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		if st.log != nil {
			st.log.Fatal("gpusmoke failed", zap.Error(err))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
