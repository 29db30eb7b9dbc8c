// Package main provides the toygrad CLI.
package main

import (
	"fmt"
	"os"

	"k8s.io/klog/v2"
)

const version = "v0.1.0-dev"

func main() {
	defer klog.Flush()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		klog.Flush()
		os.Exit(1)
	}
}
