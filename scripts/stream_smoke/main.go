// stream_smoke connects to a running backend's dashboard stream and prints
// every decoded envelope. Useful against both the real server and the
// simulator.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/0x7030676e31/mediaplayer/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("stream_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:7777", "backend base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	url := strings.TrimRight(*server, "/") + "/api/dashboard/stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	fmt.Printf("connected to %s\n", url)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(nil, 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(line, "data:")), "\x00")
		if data == "" {
			continue
		}

		var env proto.Envelope
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			fmt.Printf("bad envelope: %v (%s)\n", err, data)
			continue
		}

		nonce := "-"
		if env.Nonce != nil {
			nonce = fmt.Sprint(*env.Nonce)
		}
		fmt.Printf("ack=%d nonce=%s type=%s payload=%s\n", env.Ack, nonce, env.Payload.Type, env.Payload.Data)
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read: %w", err)
	}
	return nil
}
