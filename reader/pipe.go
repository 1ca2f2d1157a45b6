package reader

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// Pipe implements CardPoller by reading simulated card presentations from
// a named pipe, for bench testing without a reader:
//
//	echo "rfid 305419896" > /tmp/gocheckin-cards
//	echo "tag 0x12345678" > /tmp/gocheckin-cards
type Pipe struct {
	path   string
	cards  chan uint32
	ctx    context.Context
	cancel context.CancelFunc
	window time.Duration
}

// NewPipe creates the FIFO and starts listening on it.
func NewPipe(path string, window time.Duration) (*Pipe, error) {
	os.Remove(path)
	if err := syscall.Mkfifo(path, 0666); err != nil {
		return nil, fmt.Errorf("create named pipe %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipe{
		path:   path,
		cards:  make(chan uint32, 8),
		ctx:    ctx,
		cancel: cancel,
		window: window,
	}
	go p.listen()
	log.Printf("Card pipe listening on %s", path)
	return p, nil
}

func (p *Pipe) listen() {
	for p.ctx.Err() == nil {
		// Blocks until a writer connects.
		file, err := os.OpenFile(p.path, os.O_RDONLY, 0)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			log.Warnf("Card pipe open error: %v", err)
			time.Sleep(time.Second)
			continue
		}

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			id, err := parsePipeLine(line)
			if err != nil {
				log.Warnf("Card pipe parse error: %v", err)
				continue
			}
			select {
			case p.cards <- id:
			case <-p.ctx.Done():
				file.Close()
				return
			}
		}
		file.Close()
		// Writer closed the pipe, loop back to wait for next writer
	}
}

// parsePipeLine accepts "rfid <id>" or "tag <id>", decimal or hex.
func parsePipeLine(line string) (uint32, error) {
	parts := strings.Fields(line)
	cmd := strings.ToLower(parts[0])
	if cmd != "rfid" && cmd != "tag" {
		return 0, fmt.Errorf("unknown command: %s", cmd)
	}
	if len(parts) < 2 {
		return 0, fmt.Errorf("%s requires tag ID", cmd)
	}

	s := parts[1]
	if id, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(id), nil
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid tag ID: %s", s)
	}
	return uint32(id), nil
}

// Poll implements CardPoller.Poll.
func (p *Pipe) Poll(ctx context.Context) (uint32, error) {
	timer := time.NewTimer(p.window)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return 0, ErrNoCard
	case id := <-p.cards:
		return id, nil
	}
}

// Close stops the listener and removes the pipe. A listener blocked in
// open stays blocked until the next writer; it exits after that.
func (p *Pipe) Close() error {
	p.cancel()
	return os.Remove(p.path)
}
