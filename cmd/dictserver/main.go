// Command dictserver serves a small, fixed, read-only file tree over
// 9P2000. It exists to give styxclient something to talk to without
// needing a real filesystem.
//
// Usage:
//
//	dictserver <port>
package main

import (
	"log"
	"net"
	"os"

	"go.9p.dev/styx9p/dictstore"
	"go.9p.dev/styx9p/server"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("dictserver: ")

	if len(os.Args) != 2 {
		log.Println("usage: dictserver <port>")
		os.Exit(1)
	}
	port := os.Args[1]

	l, err := net.Listen("tcp", ":"+port)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("serving built-in dictionary tree on %s", l.Addr())

	srv := &server.Server{Store: dictstore.Default(), Logger: log.Default()}
	log.Fatal(srv.Serve(l))
}
