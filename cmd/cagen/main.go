// Command cagen compiles, inspects and runs cellular automaton descriptors.
//
//	cagen generate -i life.json -t wgsl -o life.wgsl
//	cagen inspect -i life.json
//	cagen run -i life.json -n 100 --instances 4 --seed 7 --png out.png
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cagen:", err)
		os.Exit(1)
	}
}
