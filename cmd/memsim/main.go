// Command memsim boots the buhos memory subsystem on a synthetic machine and
// replays allocation scripts against it.
package main

func main() {
	execute()
}
