// Package journal keeps an append-only audit trail of commands received over
// the wire. It is never replayed into the store.
package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ASHISH26940/sharedvars/internal/protocol"
)

// Entry is one journal line.
type Entry struct {
	Time  time.Time `json:"time"`
	Conn  string    `json:"conn"`
	Op    string    `json:"op"`
	Kind  string    `json:"kind,omitempty"`
	Name  string    `json:"name,omitempty"`
	Value string    `json:"value,omitempty"`
}

// NewEntry describes cmd as received on connection conn.
func NewEntry(conn string, cmd protocol.Command) Entry {
	e := Entry{
		Time: time.Now().UTC(),
		Conn: conn,
		Op:   cmd.Op.String(),
	}
	if cmd.Op == protocol.OpAdd {
		e.Kind = cmd.Value.Kind().String()
		e.Name = cmd.Name
		e.Value = cmd.Value.String()
	}
	return e
}

type Journal struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens path for appending, creating it if needed.
func Open(path string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &Journal{file: file}, nil
}

// Write appends e and syncs the file.
func (j *Journal) Write(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return err
	}
	return j.file.Sync()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Replay calls fn for every entry in the journal at path, in order.
// A missing file is treated as an empty journal.
func Replay(path string, fn func(Entry) error) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	// Lines are read whole; a journaled string value has no length limit.
	r := bufio.NewReader(file)
	for {
		line, err := r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var e Entry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			if err := fn(e); err != nil {
				return err
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
