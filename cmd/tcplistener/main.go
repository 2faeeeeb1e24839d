// Command tcplistener prints every request it receives without answering it.
// It is a debugging aid for the request parser.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"sort"
	"strconv"

	"github.com/yanshuy/cgiserver/internal/request"
)

func main() {
	port := flag.Int("port", 42069, "TCP port to listen on")
	flag.Parse()

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(*port))
	if err != nil {
		log.Fatal("error listening:", err)
	}
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Fatal("error accepting:", err)
		}
		log.Println("connection accept from", conn.RemoteAddr())
		dump(conn)
	}
}

func dump(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		req, err := request.RequestFromReader(r)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Println(err)
			return
		}

		fmt.Println("Request line:")
		fmt.Println("- Method: " + req.Method)
		fmt.Println("- Target: " + req.Target)
		fmt.Println("- Version: " + req.HttpVersion)
		if t, err := request.ParseTarget(req.Target); err == nil {
			fmt.Println("- Path: " + t.Path)
			if t.HasQuery {
				fmt.Println("- Query: " + t.Query)
			}
		}
		fmt.Println("Headers:")
		keys := make([]string, 0, len(req.Headers))
		for key := range req.Headers {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Printf("- %s: %s\n", key, req.Headers[key])
		}
		fmt.Println("Body:")
		fmt.Println(string(req.Body))
	}
}
