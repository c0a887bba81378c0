package main

import "cinematch/cmd"

func main() {
	cmd.Execute()
}
