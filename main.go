package main

import (
	"github.com/luma/imubridge/cmd"
)

func main() {
	cmd.Execute()
}
