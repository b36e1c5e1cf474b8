// Command nodegraph serves the node graph API and manages its database.
package main

func main() {
	Execute()
}
