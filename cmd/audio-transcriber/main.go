package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, color.RedString("错误: %v", err))
		}
		os.Exit(1)
	}
}
