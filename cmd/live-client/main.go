package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"
)

func main() {
	var (
		addr      = flag.String("addr", "127.0.0.1:7070", "TCP live feed address")
		pretty    = flag.Bool("pretty", true, "pretty print JSON events")
		types     = flag.String("types", "", "comma-separated event types to keep, e.g. card.like,card.comment")
		reconnect = flag.Duration("reconnect", time.Second, "wait before reconnecting, 0 exits on disconnect")
	)
	flag.Parse()

	keep := parseTypes(*types)

	for {
		err := tail(*addr, *pretty, keep)
		if *reconnect <= 0 {
			if err != nil && !errors.Is(err, os.ErrClosed) {
				log.Fatalf("[live-client] %v", err)
			}
			return
		}
		log.Printf("[live-client] disconnected: %v", err)
		time.Sleep(*reconnect)
	}
}

func parseTypes(list string) map[string]bool {
	keep := make(map[string]bool)
	for _, t := range strings.Split(list, ",") {
		if t = strings.TrimSpace(t); t != "" {
			keep[t] = true
		}
	}
	if len(keep) == 0 {
		return nil
	}
	return keep
}

func tail(addr string, pretty bool, keep map[string]bool) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	log.Printf("[live-client] connected to %s", addr)

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		show(sc.Bytes(), pretty, keep)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return os.ErrClosed
}

// show prints one feed line. Lines that are not JSON pass through only
// when no type filter is set.
func show(line []byte, pretty bool, keep map[string]bool) {
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		if keep == nil {
			fmt.Println(string(line))
		}
		return
	}
	if keep != nil {
		t, _ := obj["type"].(string)
		if !keep[t] {
			return
		}
	}
	if !pretty {
		fmt.Println(string(line))
		return
	}
	b, _ := json.MarshalIndent(obj, "", "  ")
	fmt.Println(string(b))
}
