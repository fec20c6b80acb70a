// Command openresponses runs the self-hosted OpenAI-compatible gateway.
package main

func main() {
	Execute()
}
