// Command mem-oracled is the documentation-oracle worker: it crawls and
// indexes documentation sites and answers retrieval queries over an HTTP
// worker API and a JSON-RPC-over-stdio tool surface.
package main

import (
	"os"

	"github.com/JagjeevanAK/mem-oracle/cmd/mem-oracled/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
