package main

import "github.com/jmehdipour/imei-gateway/cmd"

func main() {
	cmd.Execute()
}
