package main

import "wishdoc/cmd"

func main() {
	cmd.Execute()
}
