package main

import (
	"math/rand"
	"time"

	"github.com/lumalabs/redigo3/cmd"
)

func main() {
	rand.Seed(time.Now().UnixNano())

	cmd.Execute()
}
