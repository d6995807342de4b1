package main

import "github.com/shouni/go-testimonial-exact/cmd"

func main() {
	cmd.Execute()
}
