package main

import (
	"github.com/yandex/dhatfold/internal/dhatfold/cmd"
)

func main() {
	cmd.Execute()
}
