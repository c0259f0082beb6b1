// Command localfileserver serves a directory tree over 9P2000.
//
// Usage:
//
//	localfileserver <directory> <port>
package main

import (
	"log"
	"net"
	"os"

	"go.9p.dev/styx9p/posixstore"
	"go.9p.dev/styx9p/server"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("localfileserver: ")

	if len(os.Args) != 3 {
		log.Println("usage: localfileserver <directory> <port>")
		os.Exit(1)
	}
	dir, port := os.Args[1], os.Args[2]

	store, err := posixstore.New(dir)
	if err != nil {
		log.Fatal(err)
	}

	l, err := net.Listen("tcp", ":"+port)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("serving %s on %s", dir, l.Addr())

	srv := &server.Server{Store: store, Logger: log.Default()}
	log.Fatal(srv.Serve(l))
}
